package main

import (
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"titaniatest/internal/config"
	"titaniatest/internal/preflight"
)

type commandContext struct {
	configFlag *string

	// inventory lists hardware for preflight, devices and run; tests swap it.
	inventory preflight.Inventory
	// stdin is watched for the stop key during a run.
	stdin *os.File

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		inventory:  preflight.SystemInventory(),
		stdin:      os.Stdin,
	}
}

// ensureConfig reads the configuration without validating it so command
// flags can be layered on first.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Read(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
