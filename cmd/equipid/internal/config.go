package internal

import (
	"fmt"
	"io"

	"github.com/DreamCats/equipid/internal/config"
)

// Version 由构建时 ldflags 注入。
var Version = "dev"

// LoadConfig 从指定路径读取并解析 YAML 配置文件；路径为空时使用默认路径。
// 返回填充默认值并校验后的 *config.Config 或错误。
func LoadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(config.ExpandPath(configPath))
	}
	return config.Load()
}

// ResolveConfigPath 返回实际使用的配置文件路径。
func ResolveConfigPath(configPath string) (string, error) {
	if configPath != "" {
		return config.ExpandPath(configPath), nil
	}
	return config.DefaultPath()
}

// PrintConfigExample 向 w 打印配置文件的创建提示。
func PrintConfigExample(w io.Writer, configPath string) {
	fmt.Fprintf(w, `Create a configuration file at %s, or run:

    equipid init

Then set embedding.api_key (volcengine) or switch to a self-hosted CLIP server:

embedding:
  provider: clip
  endpoint: http://127.0.0.1:7997/embeddings
  dimensions: 512

Usage:
  1. Put reference items under ./data/<item>/info.txt and ./data/<item>/*.jpg
  2. Run: equipid ingest
  3. Serve: equipid serve
`, configPath)
}
