package chart

import (
	"sort"
	"strings"

	"backchart/internal/market"
)

// Assignment 指标挂载元数据，决定从 OHLCV 记录的哪些附加列提取序列
// 以及提取出的序列如何展示。
type Assignment struct {
	ToolName    string  `json:"tool_name"`
	DisplayName string  `json:"display_name,omitempty"`
	Color       string  `json:"color,omitempty"`
	LineWidth   float64 `json:"line_width,omitempty"`
	Subchart    bool    `json:"subchart"`
}

// 未指定颜色时按列顺序循环取用。
var defaultPalette = []string{"#f6b93b", "#4a69bd", "#78e08f", "#e55039", "#60a3bc", "#fa983a"}

const defaultStrokeWidth = 1.0

// ExtractIndicators 按 "<ToolName>_<param1>_<param2>..." 约定从记录的
// 附加列提取原始指标序列。同一 assignment 可能命中多列（如 MACD 的
// 多条输出），每列各成一条 IndicatorDefinition；列内点的顺序与记录顺序
// 一致，时间戳直接沿用记录自身的时间戳字段。
func ExtractIndicators(records []market.RawRecord, assignments []Assignment) []IndicatorDefinition {
	if len(records) == 0 || len(assignments) == 0 {
		return nil
	}
	columns := collectColumns(records)

	var defs []IndicatorDefinition
	colorIdx := 0
	for _, a := range assignments {
		tool := strings.TrimSpace(a.ToolName)
		if tool == "" {
			continue
		}
		for _, col := range columns {
			if !matchesTool(col, tool) {
				continue
			}
			def := IndicatorDefinition{
				Name:        displayName(a, col),
				Placement:   PlacementMain,
				Color:       a.Color,
				StrokeWidth: a.LineWidth,
			}
			if a.Subchart {
				def.Placement = PlacementSub
			}
			if def.Color == "" {
				def.Color = defaultPalette[colorIdx%len(defaultPalette)]
				colorIdx++
			}
			if def.StrokeWidth <= 0 {
				def.StrokeWidth = defaultStrokeWidth
			}
			for _, rec := range records {
				v, ok := rec.Extra[col]
				if !ok || v == nil {
					continue
				}
				def.RawPoints = append(def.RawPoints, RawPoint{Timestamp: rec.Timestamp, Value: v})
			}
			defs = append(defs, def)
		}
	}
	return defs
}

// collectColumns 收集全部附加列名。map 迭代无序，单条记录内的列按
// 字典序排定，整体顺序以首次出现为准，保证重复调用结果一致。
func collectColumns(records []market.RawRecord) []string {
	var cols []string
	seen := make(map[string]bool)
	for _, rec := range records {
		for _, k := range orderedKeys(rec) {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	return cols
}

func orderedKeys(rec market.RawRecord) []string {
	keys := make([]string, 0, len(rec.Extra))
	for k := range rec.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// matchesTool 列名等于工具名，或以 "<tool>_" 开头（参数后缀约定）。
func matchesTool(column, tool string) bool {
	if strings.EqualFold(column, tool) {
		return true
	}
	return len(column) > len(tool)+1 && strings.EqualFold(column[:len(tool)+1], tool+"_")
}

func displayName(a Assignment, column string) string {
	if a.DisplayName == "" {
		return column
	}
	// 一个工具命中多列时带上列的参数后缀，避免同名序列。
	if strings.EqualFold(column, a.ToolName) {
		return a.DisplayName
	}
	suffix := column[len(a.ToolName):]
	return a.DisplayName + strings.ReplaceAll(suffix, "_", " ")
}
