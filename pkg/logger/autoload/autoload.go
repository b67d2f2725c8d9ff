// Package autoload initialises the global logger from LOG_* variables when imported.
package autoload

import (
	configx "github.com/tanpawarit/portfolio-copilot/pkg/config"
	logx "github.com/tanpawarit/portfolio-copilot/pkg/logger"
)

func init() {
	conf, err := configx.Process[logx.Config]("LOG")
	if err != nil {
		logx.Init()
		return
	}
	logx.Init(*conf)
}
