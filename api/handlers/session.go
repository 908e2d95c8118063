package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/ahmadarif238/vivagraph-ai/api"
	"github.com/ahmadarif238/vivagraph-ai/internal/persistence"
	"github.com/ahmadarif238/vivagraph-ai/interview"
	"github.com/ahmadarif238/vivagraph-ai/types"
	"github.com/ahmadarif238/vivagraph-ai/workflow"
	"go.uber.org/zap"
)

// DefaultMaxUploadBytes 默认上传文档上限
const DefaultMaxUploadBytes int64 = 10 << 20

// multipartMemory 解析 multipart 时留在内存中的上限，超出部分落临时文件
const multipartMemory = 1 << 20

// =============================================================================
// 🎓 会话 Handler
// =============================================================================

// SessionService 会话服务（workflow.SessionService 实现）
type SessionService interface {
	Begin(ctx context.Context, req workflow.BeginRequest) (*workflow.Result, error)
	SubmitAnswer(ctx context.Context, sessionID, answer string) (*workflow.Result, error)
	ForceEnd(ctx context.Context, sessionID string) (*workflow.Result, error)
	Mastery(ctx context.Context, email string) ([]interview.MasteryRecord, error)
}

// SessionInspector 读取检查点与执行记录（workflow.Engine 实现）
type SessionInspector interface {
	Snapshot(ctx context.Context, sessionID string) (*workflow.Checkpoint, error)
	History(sessionID string) []workflow.ExecutionRecord
}

// TranscriptReader 读取已持久化的会话记录（persistence.Store 实现）
type TranscriptReader interface {
	GetSessionTranscript(ctx context.Context, sessionID string) (*persistence.SessionTranscript, error)
}

// SessionHandler 面试会话处理器
type SessionHandler struct {
	service        SessionService
	inspector      SessionInspector
	transcripts    TranscriptReader
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewSessionHandler 创建会话处理器；inspector 可为 nil，此时状态查询返回 503
func NewSessionHandler(service SessionService, inspector SessionInspector, maxUploadBytes int64, logger *zap.Logger) *SessionHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{
		service:        service,
		inspector:      inspector,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With(zap.String("handler", "session")),
	}
}

// WithTranscripts 启用 GET /api/v1/sessions/{id}/transcript；未设置时返回 503
func (h *SessionHandler) WithTranscripts(r TranscriptReader) *SessionHandler {
	h.transcripts = r
	return h
}

// Register 在 mux 上注册会话相关路由
func (h *SessionHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/sessions", h.HandleBegin)
	mux.HandleFunc("GET /api/v1/sessions/{id}", h.HandleGet)
	mux.HandleFunc("POST /api/v1/sessions/{id}/answers", h.HandleAnswer)
	mux.HandleFunc("POST /api/v1/sessions/{id}/end", h.HandleEnd)
	mux.HandleFunc("GET /api/v1/sessions/{id}/transcript", h.HandleTranscript)
	mux.HandleFunc("GET /api/v1/users/{email}/mastery", h.HandleMastery)
}

// =============================================================================
// 🎯 HTTP 处理程序
// =============================================================================

// HandleBegin 处理 POST /api/v1/sessions。
// 支持 application/json 与 multipart/form-data（文件字段 document）。
func (h *SessionHandler) HandleBegin(w http.ResponseWriter, r *http.Request) {
	var req api.BeginSessionRequest
	switch mediaType(r) {
	case "multipart/form-data":
		parsed, err := h.parseMultipartBegin(w, r)
		if err != nil {
			WriteError(w, r, err, h.logger)
			return
		}
		req = parsed
	case "application/json":
		if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
			return
		}
		if err := validateDocument([]byte(req.Document)); err != nil {
			WriteError(w, r, err, h.logger)
			return
		}
	default:
		WriteError(w, r, types.NewError(types.ErrInvalidRequest, "Content-Type must be application/json or multipart/form-data").
			WithHTTPStatus(http.StatusUnsupportedMediaType), h.logger)
		return
	}

	if strings.TrimSpace(req.Topic) == "" {
		WriteError(w, r, types.NewInvalidRequestError("topic is required"), h.logger)
		return
	}

	res, err := h.service.Begin(r.Context(), workflow.BeginRequest{
		Email:      req.Email,
		Topic:      req.Topic,
		Strictness: req.Strictness,
		Mode:       req.Mode,
		Document:   req.Document,
	})
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	h.logger.Info("session started",
		zap.String("session_id", res.SessionID),
		zap.String("stage", string(res.Stage)),
		zap.Bool("with_document", req.Document != ""))
	WriteJSON(w, http.StatusCreated, api.NewSessionResponse(res))
}

// HandleAnswer 处理 POST /api/v1/sessions/{id}/answers
func (h *SessionHandler) HandleAnswer(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var answer string
	switch mediaType(r) {
	case "application/json":
		var req api.SubmitAnswerRequest
		if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
			return
		}
		text, err := req.AnswerText()
		if err != nil {
			WriteError(w, r, types.NewInvalidRequestError("answer must be a string or a transcript object").WithCause(err), h.logger)
			return
		}
		answer = text
	case "application/x-www-form-urlencoded", "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
		if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			WriteError(w, r, types.NewInvalidRequestError("invalid form body").WithCause(err), h.logger)
			return
		}
		answer = r.FormValue("answer")
	default:
		WriteError(w, r, types.NewError(types.ErrInvalidRequest, "unsupported Content-Type").
			WithHTTPStatus(http.StatusUnsupportedMediaType), h.logger)
		return
	}

	res, err := h.service.SubmitAnswer(r.Context(), id, answer)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, api.NewSessionResponse(res))
}

// HandleEnd 处理 POST /api/v1/sessions/{id}/end
func (h *SessionHandler) HandleEnd(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.ForceEnd(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, api.NewSessionResponse(res))
}

// HandleGet 处理 GET /api/v1/sessions/{id}，返回检查点快照与最近执行记录
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if h.inspector == nil {
		WriteErrorMessage(w, r, http.StatusServiceUnavailable, types.ErrServiceUnavailable, "session inspection is not available", h.logger)
		return
	}
	id := r.PathValue("id")
	cp, err := h.inspector.Snapshot(r.Context(), id)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, api.SessionStateResponse{
		SessionID:  cp.SessionID,
		Status:     string(cp.Status),
		Next:       string(cp.Next),
		Version:    cp.Version,
		UpdatedAt:  cp.UpdatedAt,
		Session:    cp.Session,
		Executions: h.inspector.History(id),
	})
}

// HandleTranscript 处理 GET /api/v1/sessions/{id}/transcript
func (h *SessionHandler) HandleTranscript(w http.ResponseWriter, r *http.Request) {
	if h.transcripts == nil {
		WriteErrorMessage(w, r, http.StatusServiceUnavailable, types.ErrServiceUnavailable, "persistence is not configured", h.logger)
		return
	}
	tr, err := h.transcripts.GetSessionTranscript(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, api.NewTranscriptResponse(tr))
}

// HandleMastery 处理 GET /api/v1/users/{email}/mastery
func (h *SessionHandler) HandleMastery(w http.ResponseWriter, r *http.Request) {
	email := r.PathValue("email")
	records, err := h.service.Mastery(r.Context(), email)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, api.MasteryResponse{Email: email, Records: records})
}

// =============================================================================
// 📎 上传解析
// =============================================================================

func (h *SessionHandler) parseMultipartBegin(w http.ResponseWriter, r *http.Request) (api.BeginSessionRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return api.BeginSessionRequest{}, types.NewError(types.ErrInvalidRequest,
				fmt.Sprintf("upload exceeds %d bytes", h.maxUploadBytes)).
				WithHTTPStatus(http.StatusRequestEntityTooLarge)
		}
		return api.BeginSessionRequest{}, types.NewInvalidRequestError("invalid multipart body").WithCause(err)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	req := api.BeginSessionRequest{
		Email:      r.FormValue("email"),
		Topic:      r.FormValue("topic"),
		Strictness: r.FormValue("strictness"),
		Mode:       r.FormValue("mode"),
	}

	file, _, err := r.FormFile("document")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		// 没有文件时允许以普通字段提交文本
		req.Document = r.FormValue("document")
		return req, validateDocument([]byte(req.Document))
	case err != nil:
		return req, types.NewInvalidRequestError("invalid document upload").WithCause(err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return req, types.NewInvalidRequestError("failed to read document").WithCause(err)
	}
	if err := validateDocument(data); err != nil {
		return req, err
	}
	req.Document = string(data)
	return req, nil
}

// validateDocument 只接受 UTF-8 纯文本
func validateDocument(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if !utf8.Valid(data) || bytes.IndexByte(data, 0) >= 0 {
		return types.NewError(types.ErrInvalidRequest, "only plain-text UTF-8 documents are supported").
			WithHTTPStatus(http.StatusUnsupportedMediaType)
	}
	return nil
}
