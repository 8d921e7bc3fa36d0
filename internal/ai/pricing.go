package ai

import (
	"embed"
	"fmt"
	"log"
	"sync"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed config/pricing.yaml
var pricingYAML embed.FS

var (
	oneMillion = decimal.NewFromInt(1_000_000)

	defaultTableOnce sync.Once
	defaultTable     *PriceTable
)

type ModelPrice struct {
	Input  decimal.Decimal
	Output decimal.Decimal
}

// PriceTable maps model names to USD prices per 1M tokens.
type PriceTable struct {
	Default string
	Models  map[string]ModelPrice
}

type priceFile struct {
	Default string `yaml:"default"`
	Models  map[string]struct {
		Input  string `yaml:"input"`
		Output string `yaml:"output"`
	} `yaml:"models"`
}

// ParsePriceTable reads a price table in the embedded YAML layout.
func ParsePriceTable(data []byte) (*PriceTable, error) {
	var raw priceFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse price table: %w", err)
	}

	table := &PriceTable{Default: raw.Default, Models: make(map[string]ModelPrice, len(raw.Models))}
	for name, p := range raw.Models {
		in, err := decimal.NewFromString(p.Input)
		if err != nil {
			return nil, fmt.Errorf("model %s input price: %w", name, err)
		}
		out, err := decimal.NewFromString(p.Output)
		if err != nil {
			return nil, fmt.Errorf("model %s output price: %w", name, err)
		}
		table.Models[name] = ModelPrice{Input: in, Output: out}
	}

	if _, ok := table.Models[table.Default]; !ok {
		return nil, fmt.Errorf("default model %q missing from price table", table.Default)
	}
	return table, nil
}

func LoadPriceTable() (*PriceTable, error) {
	data, err := pricingYAML.ReadFile("config/pricing.yaml")
	if err != nil {
		return nil, err
	}
	return ParsePriceTable(data)
}

// Estimate returns the USD cost rounded to 6 decimal places. Unknown models
// use the default entry.
func (t *PriceTable) Estimate(promptTokens, completionTokens int, model string) float64 {
	price, ok := t.Models[model]
	if !ok {
		price = t.Models[t.Default]
	}

	cost := decimal.NewFromInt(int64(promptTokens)).Div(oneMillion).Mul(price.Input).
		Add(decimal.NewFromInt(int64(completionTokens)).Div(oneMillion).Mul(price.Output))

	return cost.Round(6).InexactFloat64()
}

// Cost prices a finished analysis. Local completions are free.
func (r *AnalysisResult) Cost() float64 {
	if r.Local {
		return 0
	}
	return EstimateCost(r.PromptTokens, r.CompletionTokens, r.Model)
}

// EstimateCost prices a call against the embedded table.
func EstimateCost(promptTokens, completionTokens int, model string) float64 {
	defaultTableOnce.Do(func() {
		table, err := LoadPriceTable()
		if err != nil {
			log.Printf("[pricing] embedded table unusable, costs will be zero: %v", err)
			table = &PriceTable{Models: map[string]ModelPrice{}}
		}
		defaultTable = table
	})
	return defaultTable.Estimate(promptTokens, completionTokens, model)
}
