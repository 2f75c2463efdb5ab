// Package mockig serves a fake Instagram GraphQL timeline for tests.
package mockig

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// DocID is the doc_id the server accepts unless overridden with SetDocID
const DocID = "7898261790222653"

// Connection is the response key of the timeline connection
const Connection = "xdt_api__v1__feed__user_timeline_graphql_connection"

// Request is one timeline query observed by the server
type Request struct {
	Username      string
	First         int
	After         *string
	DocID         string
	Authorization string
	Cookie        string
	CSRFToken     string
	UserAgent     string
}

// Response is a canned reply served before normal pagination
type Response struct {
	Status int
	Body   string
	Header map[string]string
}

// Server simulates the timeline endpoint with cursor pagination
type Server struct {
	server *httptest.Server

	mu       sync.RWMutex
	docID    string
	token    string
	posts    map[string][]map[string]any
	queue    []Response
	requests []Request

	requestCount int32
}

// New starts a server with no accounts
func New() *Server {
	s := &Server{
		docID: DocID,
		posts: make(map[string][]map[string]any),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/graphql/query/", s.handleTimeline)
	mux.HandleFunc("/accounts/login/", s.handleLogin)

	s.server = httptest.NewServer(mux)
	return s
}

// URL returns the base URL of the server
func (s *Server) URL() string {
	return s.server.URL
}

// Close shuts the server down
func (s *Server) Close() {
	s.server.Close()
}

// SetDocID changes the accepted doc_id
func (s *Server) SetDocID(docID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docID = docID
}

// RequireToken makes every request without "Authorization: Bearer <token>" fail with 401
func (s *Server) RequireToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// AddPosts appends n generated posts to username's timeline, newest first.
// Ids continue from the posts already present.
func (s *Server) AddPosts(username string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := len(s.posts[username])
	for i := 0; i < n; i++ {
		seq := existing + i + 1
		s.posts[username] = append(s.posts[username], map[string]any{
			"id":         fmt.Sprintf("%d00%d", 31000+seq, seq),
			"code":       fmt.Sprintf("C%04d", seq),
			"caption":    map[string]any{"text": fmt.Sprintf("post %d", seq)},
			"taken_at":   1700000000 + seq,
			"__typename": "XDTMediaDict",
		})
	}
}

// SetPosts replaces username's timeline
func (s *Server) SetPosts(username string, posts []map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts[username] = posts
}

// PrependPosts inserts posts at the head of the timeline, as new uploads do
func (s *Server) PrependPosts(username string, posts ...map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts[username] = append(append([]map[string]any{}, posts...), s.posts[username]...)
}

// Enqueue serves the given responses, in order, before resuming normal pagination
func (s *Server) Enqueue(responses ...Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, responses...)
}

// FailNext serves status with a small JSON body n times
func (s *Server) FailNext(n, status int) {
	for i := 0; i < n; i++ {
		s.Enqueue(Response{Status: status, Body: errorBody(status)})
	}
}

// Requests returns every timeline query observed so far
func (s *Server) Requests() []Request {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// RequestCount returns the number of timeline queries served
func (s *Server) RequestCount() int {
	return int(atomic.LoadInt32(&s.requestCount))
}

// ResetCounters forgets observed requests
func (s *Server) ResetCounters() {
	atomic.StoreInt32(&s.requestCount, 0)
	s.mu.Lock()
	s.requests = nil
	s.mu.Unlock()
}

// EncodeCursor returns the opaque cursor pointing after offset posts
func EncodeCursor(offset int) string {
	return base64.RawURLEncoding.EncodeToString([]byte("offset:" + strconv.Itoa(offset)))
}

func decodeCursor(cursor string) (int, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimPrefix(string(raw), "offset:"))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("bad cursor %q", cursor)
	}
	return n, nil
}

type timelineVariables struct {
	Username string  `json:"username"`
	First    int     `json:"first"`
	After    *string `json:"after"`
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&s.requestCount, 1)

	query := r.URL.Query()
	var vars timelineVariables
	varsErr := json.Unmarshal([]byte(query.Get("variables")), &vars)

	req := Request{
		Username:      vars.Username,
		First:         vars.First,
		After:         vars.After,
		DocID:         query.Get("doc_id"),
		Authorization: r.Header.Get("Authorization"),
		Cookie:        r.Header.Get("Cookie"),
		CSRFToken:     r.Header.Get("X-CSRFToken"),
		UserAgent:     r.Header.Get("User-Agent"),
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	var canned *Response
	if len(s.queue) > 0 {
		canned = &s.queue[0]
		s.queue = s.queue[1:]
	}
	docID, token := s.docID, s.token
	posts := s.posts[vars.Username]
	_, known := s.posts[vars.Username]
	s.mu.Unlock()

	if canned != nil {
		for k, v := range canned.Header {
			w.Header().Set(k, v)
		}
		status := canned.Status
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(canned.Body))
		return
	}

	if token != "" && req.Authorization != "Bearer "+token {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"message":       "Please wait a few minutes before you try again.",
			"require_login": true,
			"status":        "fail",
		})
		return
	}

	if varsErr != nil || req.DocID != docID || vars.First <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "invalid query", "status": "fail"})
		return
	}
	if !known {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "user not found", "status": "fail"})
		return
	}

	offset := 0
	if vars.After != nil {
		n, err := decodeCursor(*vars.After)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"message": err.Error(), "status": "fail"})
			return
		}
		offset = n
	}
	if offset > len(posts) {
		offset = len(posts)
	}
	end := offset + vars.First
	if end > len(posts) {
		end = len(posts)
	}

	edges := make([]map[string]any, 0, end-offset)
	for _, post := range posts[offset:end] {
		edges = append(edges, map[string]any{"node": post, "cursor": EncodeCursor(offset + len(edges) + 1)})
	}

	var endCursor any
	if end > offset {
		endCursor = EncodeCursor(end)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			Connection: map[string]any{
				"edges": edges,
				"page_info": map[string]any{
					"end_cursor":        endCursor,
					"has_next_page":     end < len(posts),
					"has_previous_page": offset > 0,
					"start_cursor":      nil,
				},
			},
		},
		"extensions": map[string]any{"is_final": true},
		"status":     "ok",
	})
}

// handleLogin stands in for the login page the real site redirects to
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = w.Write([]byte("<html><body>Log in</body></html>"))
}

// LoginRedirect is a canned response that redirects to the login page
func LoginRedirect() Response {
	return Response{
		Status: http.StatusFound,
		Header: map[string]string{"Location": "/accounts/login/?next=%2Fgraphql%2Fquery%2F"},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errorBody(status int) string {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return `{"message":"login required","require_login":true,"status":"fail"}`
	case http.StatusTooManyRequests:
		return `{"message":"Please wait a few minutes before you try again.","status":"fail"}`
	default:
		return fmt.Sprintf(`{"message":"error %d","status":"fail"}`, status)
	}
}
