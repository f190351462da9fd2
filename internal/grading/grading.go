// Package grading 提供评分配置的纯函数实现：
// 百分比到等级的映射，以及平时/考试两个分量的加权合成。
// 本包不持有任何状态，所有计算只依赖入参。
package grading

import "math"

// GradeRange 等级区间 [Min, Max]（闭区间，按整数百分比判定）
type GradeRange struct {
	Min     int
	Max     int
	Grade   string
	Remarks string
}

// Scale 评分标准：等级区间表 + 平时/考试权重
type Scale struct {
	Name       string
	TestWeight float64
	ExamWeight float64
	Ranges     []GradeRange
}

// DefaultScaleName 默认评分标准
const DefaultScaleName = "standard"

// scales 内置评分标准。区间按 Min 降序排列，查找命中第一个包含值的区间。
var scales = map[string]Scale{
	"standard": {
		Name:       "standard",
		TestWeight: 40,
		ExamWeight: 60,
		Ranges: []GradeRange{
			{Min: 90, Max: 100, Grade: "A+", Remarks: "Excellent"},
			{Min: 80, Max: 89, Grade: "A", Remarks: "Very Good"},
			{Min: 70, Max: 79, Grade: "B+", Remarks: "Good"},
			{Min: 60, Max: 69, Grade: "B", Remarks: "Above Average"},
			{Min: 50, Max: 59, Grade: "C", Remarks: "Average"},
			{Min: 40, Max: 49, Grade: "D", Remarks: "Below Average"},
			{Min: 30, Max: 39, Grade: "E", Remarks: "Poor"},
			{Min: 0, Max: 29, Grade: "F", Remarks: "Fail"},
		},
	},
	"cambridge": {
		Name:       "cambridge",
		TestWeight: 30,
		ExamWeight: 70,
		Ranges: []GradeRange{
			{Min: 90, Max: 100, Grade: "A*", Remarks: "Outstanding"},
			{Min: 80, Max: 89, Grade: "A", Remarks: "Excellent"},
			{Min: 70, Max: 79, Grade: "B", Remarks: "Very Good"},
			{Min: 60, Max: 69, Grade: "C", Remarks: "Good"},
			{Min: 50, Max: 59, Grade: "D", Remarks: "Satisfactory"},
			{Min: 40, Max: 49, Grade: "E", Remarks: "Pass"},
			{Min: 0, Max: 39, Grade: "U", Remarks: "Ungraded"},
		},
	},
}

// GradeResult 等级判定结果
type GradeResult struct {
	Grade   string
	Remarks string
}

// WeightedResult 加权合成结果
type WeightedResult struct {
	WeightedScore float64 // testWeighted + examWeighted
	Percentage    float64 // 相对于实际参与权重的百分比
	TestWeighted  float64
	ExamWeighted  float64
}

// GetScale 按名称取评分标准，未知名称回退到 standard
func GetScale(name string) Scale {
	if s, ok := scales[name]; ok {
		return s
	}
	return scales[DefaultScaleName]
}

// GradeFor 按评分标准把百分比映射为等级。
// 百分比先收敛到 [0,100] 再按四舍五入后的整数查表；
// 任何情况下都有结果：区间未命中时回退到该标准的最差区间。
func GradeFor(percentage float64, scaleName string) GradeResult {
	scale := GetScale(scaleName)

	if percentage < 0 {
		percentage = 0
	}
	if percentage > 100 {
		percentage = 100
	}
	p := int(math.Round(percentage))

	for _, r := range scale.Ranges {
		if p >= r.Min && p <= r.Max {
			return GradeResult{Grade: r.Grade, Remarks: r.Remarks}
		}
	}

	// 区间表有缝隙时兜底：取最差（Min 最小）区间
	worst := scale.Ranges[0]
	for _, r := range scale.Ranges[1:] {
		if r.Min < worst.Min {
			worst = r
		}
	}
	return GradeResult{Grade: worst.Grade, Remarks: worst.Remarks}
}

// WeightedScore 把平时分量与考试分量合成为一个加权百分比。
// 缺失的分量（score 为 nil 或 max 非正数）整体不参与权重，而不是按零分计入：
// 只有考试成绩的学生，百分比只相对 ExamWeight 计算，不会被平时权重稀释。
// 中间加权贡献保留一位小数。
func WeightedScore(testScore, testMax, examScore, examMax *float64, scale Scale) WeightedResult {
	var res WeightedResult
	var activeWeight float64

	if testScore != nil && testMax != nil && *testMax > 0 {
		res.TestWeighted = round1(*testScore / *testMax * scale.TestWeight)
		activeWeight += scale.TestWeight
	}
	if examScore != nil && examMax != nil && *examMax > 0 {
		res.ExamWeighted = round1(*examScore / *examMax * scale.ExamWeight)
		activeWeight += scale.ExamWeight
	}

	res.WeightedScore = round1(res.TestWeighted + res.ExamWeighted)
	if activeWeight > 0 {
		res.Percentage = round1(res.WeightedScore / activeWeight * 100)
	}
	return res
}

// round1 四舍五入到一位小数
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
