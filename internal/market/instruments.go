package market

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Instrument 描述单个品种的合约参数。
type Instrument struct {
	Symbol             string  `yaml:"symbol"`
	ContractMultiplier float64 `yaml:"contract_multiplier"`
	Description        string  `yaml:"description"`
}

// Catalog 是品种目录：报表里的品种名 → 合约参数。
// 报表不携带合约乘数，缺省值对贵金属/指数并不成立，
// 需要外置目录逐品种覆盖。
type Catalog struct {
	instruments map[string]Instrument
}

type catalogFile struct {
	Instruments []Instrument `yaml:"instruments"`
}

// LoadCatalog 从 YAML 文件读取品种目录。path 为空返回空目录，
// 未知字段视为配置错误（严格解码）。
func LoadCatalog(path string) (*Catalog, error) {
	c := &Catalog{instruments: make(map[string]Instrument)}
	if strings.TrimSpace(path) == "" {
		return c, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取品种目录失败: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var file catalogFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("解析品种目录失败: %w", err)
	}
	for _, inst := range file.Instruments {
		symbol := strings.TrimSpace(inst.Symbol)
		if symbol == "" {
			return nil, fmt.Errorf("品种目录存在空 symbol")
		}
		if inst.ContractMultiplier <= 0 {
			return nil, fmt.Errorf("品种 %s 的 contract_multiplier 必须为正数: %v", symbol, inst.ContractMultiplier)
		}
		inst.Symbol = symbol
		c.instruments[symbol] = inst
	}
	return c, nil
}

// Multiplier 返回品种的合约乘数；目录未收录时用 fallback。
func (c *Catalog) Multiplier(symbol string, fallback float64) float64 {
	if c == nil {
		return fallback
	}
	if inst, ok := c.instruments[symbol]; ok {
		return inst.ContractMultiplier
	}
	return fallback
}

// Len 返回目录收录的品种数。
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.instruments)
}
