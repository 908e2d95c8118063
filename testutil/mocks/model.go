// MockModel 的语言模型测试模拟实现。
//
// 按提示词名称配置固定响应或错误，并记录每次调用。
package mocks

import (
	"context"
	"sync"

	"github.com/ahmadarif238/vivagraph-ai/interview"
)

// --- MockModel 结构 ---

// MockModel 是 interview.Model 的模拟实现
type MockModel struct {
	mu sync.Mutex

	defaultResponse string
	responses       map[string][]string
	errs            map[string]error
	calls           []MockModelCall
}

// MockModelCall 记录单次调用
type MockModelCall struct {
	Prompt string
	Vars   map[string]any
}

// NewMockModel 创建新的 MockModel
func NewMockModel() *MockModel {
	return &MockModel{
		defaultResponse: "Mock response",
		responses:       make(map[string][]string),
		errs:            make(map[string]error),
	}
}

// --- Builder 方法 ---

// WithDefault 设置未配置提示词的默认响应
func (m *MockModel) WithDefault(response string) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultResponse = response
	return m
}

// WithResponse 为指定提示词追加响应；按顺序返回，最后一个会重复使用
func (m *MockModel) WithResponse(prompt string, responses ...string) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = append(m.responses[prompt], responses...)
	return m
}

// WithError 让指定提示词返回错误，传 nil 清除
func (m *MockModel) WithError(prompt string, err error) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errs, prompt)
	} else {
		m.errs[prompt] = err
	}
	return m
}

// --- interview.Model 实现 ---

func (m *MockModel) Generate(ctx context.Context, prompt interview.Prompt, vars map[string]any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := make(map[string]any, len(vars))
	for k, v := range vars {
		copied[k] = v
	}
	m.calls = append(m.calls, MockModelCall{Prompt: prompt.Name, Vars: copied})

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err, ok := m.errs[prompt.Name]; ok {
		return "", err
	}
	queue := m.responses[prompt.Name]
	switch len(queue) {
	case 0:
		return m.defaultResponse, nil
	case 1:
		return queue[0], nil
	default:
		m.responses[prompt.Name] = queue[1:]
		return queue[0], nil
	}
}

// --- 调用记录 ---

// Calls 返回所有调用记录的副本
func (m *MockModel) Calls() []MockModelCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockModelCall(nil), m.calls...)
}

// CallCount 返回指定提示词的调用次数，prompt 为空时返回总次数
func (m *MockModel) CallCount(prompt string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prompt == "" {
		return len(m.calls)
	}
	n := 0
	for _, c := range m.calls {
		if c.Prompt == prompt {
			n++
		}
	}
	return n
}

// LastCall 返回指定提示词的最后一次调用
func (m *MockModel) LastCall(prompt string) (MockModelCall, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.calls) - 1; i >= 0; i-- {
		if m.calls[i].Prompt == prompt {
			return m.calls[i], true
		}
	}
	return MockModelCall{}, false
}
