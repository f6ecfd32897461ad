package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/querygenie/querygenie/internal/config"
)

const starterConfig = `# querygenie configuration
server:
  # Query Genie API server.
  base_url: http://localhost:8000

# Optional defaults for the database connect form. The password is only
# used for connect requests; leave it out to type it each time.
connection:
  host: localhost
  port: 3306
  user: ""
  password: ""
  database: ""

# Where the offline chat mirror lives. Empty = ~/.local/share/querygenie.
data_dir: ""

# debug | info | warn | error
log_level: info
`

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfgFile
			if path == "" {
				path = config.DefaultPath()
			}
			if path == "" {
				return fmt.Errorf("cannot determine config path; pass --config")
			}

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(starterConfig), 0o600); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}
