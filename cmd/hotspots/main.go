// 命令行查询工具：在本地构建（或命中缓存）计数立方体后执行热点、计数与重复性查询
package main

import (
	"os"

	"github.com/joho/godotenv"

	"crime-hotspots/internal/logger"
)

func main() {
	_ = godotenv.Load(".env")
	l := logger.Setup()
	if err := rootCmd.Execute(); err != nil {
		l.Debug("command_failed", "err", err)
		os.Exit(1)
	}
}
