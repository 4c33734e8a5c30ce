// Package testutil provides an in-process fake of the pixeldrain API.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/marianozunino/keeper/internal/model"
)

// ViewCall records one POST to the view endpoint
type ViewCall struct {
	FileID string
	Token  string
}

type cannedResponse struct {
	status int
	body   string
}

// FakeHost serves the three endpoints the daemon uses. Without overrides it
// behaves like a healthy host: the listing requires the configured API key,
// every viewer page embeds the token "tok-<id>" and any view carrying the
// right token succeeds.
type FakeHost struct {
	*httptest.Server
	APIKey string

	mu        sync.Mutex
	files     []model.FileRecord
	list      *cannedResponse
	page      *cannedResponse
	view      *cannedResponse
	listCalls int
	pageCalls []string
	viewCalls []ViewCall
}

// NewFakeHost starts a fake host; it is closed when the test ends
func NewFakeHost(t testing.TB, apiKey string) *FakeHost {
	t.Helper()

	h := &FakeHost{APIKey: apiKey}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.GET("/api/user/files", h.handleList)
	e.GET("/u/:id", h.handlePage)
	e.POST("/api/file/:id/view", h.handleView)

	h.Server = httptest.NewServer(e)
	t.Cleanup(h.Server.Close)

	return h
}

// SetFiles replaces the listing served to authenticated requests
func (h *FakeHost) SetFiles(files ...model.FileRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.files = files
}

// SetListResponse overrides the listing endpoint with a canned response
func (h *FakeHost) SetListResponse(status int, body string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.list = &cannedResponse{status: status, body: body}
}

// SetPageResponse overrides the viewer page with a canned response
func (h *FakeHost) SetPageResponse(status int, body string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.page = &cannedResponse{status: status, body: body}
}

// SetViewResponse overrides the view endpoint with a canned response
func (h *FakeHost) SetViewResponse(status int, body string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.view = &cannedResponse{status: status, body: body}
}

// ListCalls returns how many times the listing was requested
func (h *FakeHost) ListCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.listCalls
}

// PageCalls returns the ids whose viewer page was requested, in order
func (h *FakeHost) PageCalls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.pageCalls...)
}

// ViewCalls returns the views submitted, in order
func (h *FakeHost) ViewCalls() []ViewCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]ViewCall(nil), h.viewCalls...)
}

// Token is the view token the fake embeds for a file
func Token(fileID string) string {
	return "tok-" + fileID
}

func (h *FakeHost) handleList(c echo.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listCalls++

	if h.list != nil {
		return c.Blob(h.list.status, echo.MIMEApplicationJSON, []byte(h.list.body))
	}

	user, pass, ok := c.Request().BasicAuth()
	if !ok || user != "" || pass != h.APIKey {
		return c.JSON(http.StatusUnauthorized, map[string]any{"success": false, "value": "unauthorized"})
	}

	files := h.files
	if files == nil {
		files = []model.FileRecord{}
	}
	return c.JSON(http.StatusOK, map[string]any{"files": files})
}

func (h *FakeHost) handlePage(c echo.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := c.Param("id")
	h.pageCalls = append(h.pageCalls, id)

	if h.page != nil {
		return c.HTML(h.page.status, h.page.body)
	}

	page := fmt.Sprintf(`<html><script>window.viewer_data = {"type":"file","api_response":{"id":%q},"view_token":%q,"embedded":false};</script></html>`,
		id, Token(id))
	return c.HTML(http.StatusOK, page)
}

func (h *FakeHost) handleView(c echo.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := c.Param("id")
	token := c.FormValue("token")
	h.viewCalls = append(h.viewCalls, ViewCall{FileID: id, Token: token})

	if h.view != nil {
		return c.Blob(h.view.status, echo.MIMEApplicationJSON, []byte(h.view.body))
	}

	if token != Token(id) {
		return c.JSON(http.StatusOK, map[string]any{"success": false, "value": "invalid_token"})
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}
