package model

// CutoutResult 抠图结果
type CutoutResult struct {
	Key        string   `json:"key"`
	MD5        string   `json:"md5"`
	Strategy   string   `json:"strategy"`
	Width      int      `json:"width"`
	Height     int      `json:"height"`
	Format     string   `json:"format"`
	ImageURL   string   `json:"image_url"`
	Filename   string   `json:"filename"`
	BBox       BBox     `json:"bounding_box"`
	Foreground float64  `json:"foreground_ratio"`
	Objects    []Object `json:"objects,omitempty"`
	Downscaled bool     `json:"downscaled"`
	Timestamp  int64    `json:"timestamp"`
}

// Object 参与抠图的检测目标
type Object struct {
	Class string  `json:"class"`
	Score float64 `json:"score"`
	BBox  BBox    `json:"bbox"`
}

// BBox 边界框
type BBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// GenerateResult 去背景并生成新背景的结果
type GenerateResult struct {
	Cutout   *CutoutResult `json:"cutout"`
	ImageURL string        `json:"image_url"`
	Filename string        `json:"filename"`
	Prompt   string        `json:"prompt"`
	Seed     int64         `json:"seed"`
}

// EdgeResult 边缘图结果
type EdgeResult struct {
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Threshold float64 `json:"threshold"`
	ImageURL  string  `json:"image_url"`
	Filename  string  `json:"filename"`
}

// Job 异步任务
type Job struct {
	ID        string        `json:"id"`
	State     string        `json:"state"`
	Error     string        `json:"error,omitempty"`
	Result    *CutoutResult `json:"result,omitempty"`
	CreatedAt int64         `json:"created_at"`
	UpdatedAt int64         `json:"updated_at"`
}

// Response 通用成功响应
type Response struct {
	Success  bool     `json:"success"`
	Message  string   `json:"message"`
	Data     any      `json:"data,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}
