package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/langdag/dagbuilder/internal/config"
)

const defaultConfig = `# dagbuilder configuration

# Session storage
storage:
  driver: sqlite            # sqlite or redis
  path: ~/.config/dagbuilder/sessions.db
  # redis_url: redis://localhost:6379/0
  # redis_prefix: dagbuilder

# Workflow-creation service used by commit
service:
  base_url: http://localhost:8080
  # api_key: set DAGBUILDER_API_KEY instead
  # timeout: 30s

# HTTP surface started by "dagbuilder serve"
server:
  host: 127.0.0.1
  port: 8090

# Logging settings
logging:
  level: info
  format: text
`

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long:  `Commands for managing dagbuilder configuration.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long:  `Display the effective configuration after defaults, file and environment.`,
		Args:  cobra.NoArgs,
		RunE:  a.reported(a.runConfigShow),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Args:  cobra.NoArgs,
		RunE:  a.reported(a.runConfigPath),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Initialize configuration file",
		Long:  `Create a default configuration file.`,
		Args:  cobra.NoArgs,
		RunE:  a.reported(a.runConfigInit),
	})

	return cmd
}

func (a *app) runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	if cfg.Service.APIKey != "" {
		cfg.Service.APIKey = "********"
	}
	if cfg.Server.APIKey != "" {
		cfg.Server.APIKey = "********"
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = a.out.Write(data)
	return err
}

func (a *app) runConfigPath(cmd *cobra.Command, args []string) error {
	path, err := a.configPath()
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Config file path: %s\n", path)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintln(a.out, "(file does not exist)")
	} else {
		fmt.Fprintln(a.out, "(file exists)")
	}
	return nil
}

func (a *app) runConfigInit(cmd *cobra.Command, args []string) error {
	path, err := a.configPath()
	if err != nil {
		return err
	}
	if err := config.EnsureStorageDir(path); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	if err := os.WriteFile(path, []byte(defaultConfig), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(a.out, "Created config file: %s\n", path)
	return nil
}

func (a *app) configPath() (string, error) {
	if a.cfgFile != "" {
		return a.cfgFile, nil
	}
	path, err := config.ConfigFile()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return path, nil
}
