package connect

import (
	"errors"
	"net/url"
	"testing"

	"github.com/querygenie/querygenie/internal/api"
)

func validConfig() api.ConnectionConfig {
	return api.ConnectionConfig{
		Host:     "localhost",
		Port:     3306,
		User:     "root",
		Password: "",
		Database: "shop",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*api.ConnectionConfig)
		field  string
	}{
		{"missing host", func(c *api.ConnectionConfig) { c.Host = "" }, "host"},
		{"missing user", func(c *api.ConnectionConfig) { c.User = "" }, "user"},
		{"missing database", func(c *api.ConnectionConfig) { c.Database = "" }, "database"},
		{"port zero", func(c *api.ConnectionConfig) { c.Port = 0 }, "port"},
		{"port too high", func(c *api.ConnectionConfig) { c.Port = 70000 }, "port"},
		{"negative port", func(c *api.ConnectionConfig) { c.Port = -1 }, "port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			errs := Validate(cfg)
			if len(errs) != 1 {
				t.Fatalf("got %d errors, want 1: %v", len(errs), errs)
			}
			if errs[0].Field != tt.field {
				t.Errorf("Field = %q, want %q", errs[0].Field, tt.field)
			}
		})
	}

	if errs := Validate(validConfig()); len(errs) != 0 {
		t.Errorf("valid config produced errors: %v", errs)
	}

	// An empty password is allowed (e.g. local dev databases).
	cfg := validConfig()
	cfg.Password = ""
	if errs := Validate(cfg); len(errs) != 0 {
		t.Errorf("empty password rejected: %v", errs)
	}
}

func TestClassifySeverities(t *testing.T) {
	tests := []struct {
		code string
		want Severity
	}{
		{CodeDatabaseNotFound, SeverityInfo},
		{CodeHostNotFound, SeverityInfo},
		{CodeAuthFailed, SeverityError},
		{CodeConnectionRefused, SeverityError},
		{CodeTimeout, SeverityError},
		{CodeNetworkUnreachable, SeverityError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			adv := Classify(&api.ServerError{Code: tt.code, Message: "m", Suggestion: "s"})
			if adv.Severity != tt.want {
				t.Errorf("Severity = %v, want %v", adv.Severity, tt.want)
			}
			if adv.Message != "m" || adv.Suggestion != "s" {
				t.Errorf("server text not carried through: %+v", adv)
			}
			if adv.Title == "" || adv.Icon == "" {
				t.Errorf("missing presentation fields: %+v", adv)
			}
		})
	}
}

func TestClassifyUnreachableIsLocal(t *testing.T) {
	err := &url.Error{Op: "Post", URL: "http://localhost:8000/api/connect", Err: errors.New("connection refused")}
	adv := Classify(err)
	if adv.Title != "Server Unreachable" {
		t.Errorf("Title = %q, want local unreachable advice", adv.Title)
	}
	if adv.Severity != SeverityError {
		t.Errorf("Severity = %v", adv.Severity)
	}
}

func TestClassifyUnknownCodeFallsBack(t *testing.T) {
	adv := Classify(&api.ServerError{Code: "SOMETHING_NEW", Message: "odd"})
	if adv.Title != "Connection Failed" {
		t.Errorf("Title = %q", adv.Title)
	}
	if adv.Message != "odd" {
		t.Errorf("Message = %q", adv.Message)
	}
}

func TestClassifyUnstructuredError(t *testing.T) {
	adv := Classify(&api.StatusError{Status: 400, Detail: "Database connection failed"})
	if adv.Severity != SeverityError || adv.Message == "" {
		t.Errorf("adv = %+v", adv)
	}
}
