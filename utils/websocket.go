package utils

import (
	"github.com/google/uuid"
)

// GenerateConnID 生成连接ID
func GenerateConnID() string {
	return uuid.NewString()
}
