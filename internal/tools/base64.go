package tools

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/wwwzy/redagent/internal/agent"
)

// Base64DecodeDefinition base64_decode 工具。容忍缺失的填充与
// URL-safe 字母表，CTF 题面里两种都常见。
func Base64DecodeDefinition() *agent.ToolDefinition {
	return &agent.ToolDefinition{
		Name: "base64_decode",
		Desc: "Decode a base64 encoded string to plain text. Useful for decoding encoded data in CTF challenges.",
		Params: map[string]*agent.ParamSpec{
			"encoded_string": {
				Type:     schema.String,
				Desc:     "The base64 encoded string to decode",
				Required: true,
			},
		},
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			encoded, _ := args["encoded_string"].(string)
			encoded = strings.TrimSpace(encoded)
			if pad := len(encoded) % 4; pad != 0 {
				encoded += strings.Repeat("=", 4-pad)
			}
			decoded, err := base64.StdEncoding.DecodeString(encoded)
			if err != nil {
				decoded, err = base64.URLEncoding.DecodeString(encoded)
			}
			if err != nil {
				return fmt.Sprintf("Error decoding base64: %s", err), nil
			}
			return string(decoded), nil
		},
	}
}

// Base64EncodeDefinition base64_encode 工具。
func Base64EncodeDefinition() *agent.ToolDefinition {
	return &agent.ToolDefinition{
		Name: "base64_encode",
		Desc: "Encode a plain text string to base64. Useful for encoding payloads.",
		Params: map[string]*agent.ParamSpec{
			"plain_string": {
				Type:     schema.String,
				Desc:     "The plain text string to encode",
				Required: true,
			},
		},
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			plain, _ := args["plain_string"].(string)
			return base64.StdEncoding.EncodeToString([]byte(plain)), nil
		},
	}
}
