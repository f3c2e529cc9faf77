package globals

import "github.com/hashicorp/go-hclog"

var AppLogger = hclog.New(&hclog.LoggerOptions{
	Name:  "aperoland-chat",
	Level: hclog.LevelFromString("INFO"),
})
