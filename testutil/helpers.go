// =============================================================================
// 🧪 测试辅助函数
// =============================================================================
// 提供通用的测试辅助函数和会话构造工具
//
// 使用方法:
//
//	ctx := testutil.TestContext(t)
//	s := testutil.SessionWithExchanges("s-1", interview.ModeStandard, 4)
// =============================================================================
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/ahmadarif238/vivagraph-ai/interview"
)

// =============================================================================
// 🎯 上下文辅助
// =============================================================================

// TestContext 返回带超时的测试上下文
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// CancelledContext 返回已取消的上下文
func CancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// =============================================================================
// 🧩 会话构造
// =============================================================================

// NewSession 返回带默认字段的新会话
func NewSession(id string, mode interview.Mode) *interview.Session {
	return interview.NewSession(id, "Operating Systems", "moderate", mode)
}

// History 生成 n 条交替的 examiner/candidate 记录，从 examiner 开始
func History(n int) []interview.Turn {
	turns := make([]interview.Turn, 0, n)
	for i := 0; i < n; i++ {
		role := interview.RoleExaminer
		if i%2 == 1 {
			role = interview.RoleCandidate
		}
		turns = append(turns, interview.Turn{
			Role:      role,
			Content:   fmt.Sprintf("%s turn %d", role, i+1),
			Seq:       i + 1,
			CreatedAt: time.Unix(int64(i), 0).UTC(),
		})
	}
	return turns
}

// SessionWithHistory 返回已经有 n 条历史记录的会话
func SessionWithHistory(id string, mode interview.Mode, n int) *interview.Session {
	s := NewSession(id, mode)
	s.History = History(n)
	s.QuestionCount = (n + 1) / 2
	return s
}

// =============================================================================
// ⏳ 异步断言
// =============================================================================

// AssertEventuallyTrue 在超时前轮询条件
func AssertEventuallyTrue(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()
	if !WaitFor(condition, timeout) {
		t.Fatalf("condition not met within %v", timeout)
	}
}

// WaitFor 等待条件满足，超时返回 false
func WaitFor(condition func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return condition()
}

// =============================================================================
// 📦 数据工具
// =============================================================================

// MustJSON 序列化为 JSON 字符串，失败时 panic
func MustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}
