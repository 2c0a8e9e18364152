package logger

import (
	"os"

	"go.uber.org/zap"
)

// NewLogger 创建 zap.Logger；生产环境输出 JSON
func NewLogger() (*zap.Logger, error) {
	if os.Getenv("GIN_MODE") == "release" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
