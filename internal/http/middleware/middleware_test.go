package middleware_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"sigdesk.app/server/internal/http/middleware"
	"sigdesk.app/server/internal/model"
	"sigdesk.app/server/internal/ratelimit"
	"sigdesk.app/server/internal/service"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type failingStore struct{}

func (failingStore) Hit(context.Context, string, ratelimit.Config) (ratelimit.Result, error) {
	return ratelimit.Result{}, errors.New("redis: connection refused")
}

func (failingStore) Reset(context.Context, string) error { return nil }

type stubAuthService struct {
	service.AuthService
	users map[int64]*model.User
	err   error
}

func (s *stubAuthService) ValidateSession(_ context.Context, sessionID int64) (*model.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	if u, ok := s.users[sessionID]; ok {
		return u, nil
	}
	return nil, service.ErrSessionExpired
}

func ok(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) }

func serve(router *gin.Engine, method, path string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "203.0.113.9:51000"
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

var _ = Describe("RateLimit", func() {
	var (
		router *gin.Engine
		clock  *fakeClock
	)

	BeforeEach(func() {
		clock = &fakeClock{now: time.Now()}
		limiter, err := ratelimit.New(ratelimit.NewMemoryStore(clock), "test", ratelimit.Config{MaxRequests: 2, Window: time.Minute})
		Expect(err).NotTo(HaveOccurred())

		router = gin.New()
		router.GET("/", middleware.RateLimit(limiter), ok)
	})

	It("sets the limit headers on allowed requests", func() {
		w := serve(router, http.MethodGet, "/", nil)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Header().Get("X-RateLimit-Limit")).To(Equal("2"))
		Expect(w.Header().Get("X-RateLimit-Remaining")).To(Equal("1"))
		Expect(w.Header().Get("X-RateLimit-Reset")).To(Equal(strconv.FormatInt(clock.Now().Add(time.Minute).Unix(), 10)))
	})

	It("returns 429 with Retry-After once the window is full", func() {
		serve(router, http.MethodGet, "/", nil)
		clock.Advance(20 * time.Second)
		serve(router, http.MethodGet, "/", nil)

		w := serve(router, http.MethodGet, "/", nil)

		Expect(w.Code).To(Equal(http.StatusTooManyRequests))
		Expect(w.Body.String()).To(MatchJSON(`{"error":"too many requests"}`))
		Expect(w.Header().Get("X-RateLimit-Remaining")).To(Equal("0"))
		Expect(w.Header().Get("Retry-After")).To(Equal("40"))
	})

	It("allows requests again after the window slides", func() {
		serve(router, http.MethodGet, "/", nil)
		serve(router, http.MethodGet, "/", nil)
		clock.Advance(61 * time.Second)

		w := serve(router, http.MethodGet, "/", nil)

		Expect(w.Code).To(Equal(http.StatusOK))
	})

	It("keeps separate budgets per client IP", func() {
		serve(router, http.MethodGet, "/", nil)
		serve(router, http.MethodGet, "/", nil)

		w := serve(router, http.MethodGet, "/", func(r *http.Request) { r.RemoteAddr = "198.51.100.4:1234" })

		Expect(w.Code).To(Equal(http.StatusOK))
	})

	It("keys authenticated callers by user", func() {
		limiter, err := ratelimit.New(ratelimit.NewMemoryStore(clock), "user", ratelimit.Config{MaxRequests: 1, Window: time.Minute})
		Expect(err).NotTo(HaveOccurred())

		setUser := func(id int64) gin.HandlerFunc {
			return func(c *gin.Context) {
				c.Request = c.Request.WithContext(middleware.WithUser(c.Request.Context(), &model.User{ID: id}, 1))
			}
		}
		r := gin.New()
		r.GET("/a", setUser(1), middleware.RateLimit(limiter), ok)
		r.GET("/b", setUser(2), middleware.RateLimit(limiter), ok)

		Expect(serve(r, http.MethodGet, "/a", nil).Code).To(Equal(http.StatusOK))
		Expect(serve(r, http.MethodGet, "/b", nil).Code).To(Equal(http.StatusOK))
		Expect(serve(r, http.MethodGet, "/a", nil).Code).To(Equal(http.StatusTooManyRequests))
	})

	It("fails open when the store errors", func() {
		limiter, err := ratelimit.New(failingStore{}, "broken", ratelimit.API)
		Expect(err).NotTo(HaveOccurred())
		r := gin.New()
		r.GET("/", middleware.RateLimit(limiter), ok)

		w := serve(r, http.MethodGet, "/", nil)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Header().Get("X-RateLimit-Limit")).To(BeEmpty())
	})
})

var _ = Describe("RequireSession", func() {
	var (
		router *gin.Engine
		auth   *stubAuthService
		seen   *model.User
	)

	BeforeEach(func() {
		seen = nil
		auth = &stubAuthService{users: map[int64]*model.User{
			42: {ID: 7, Role: model.RoleMember},
		}}
		router = gin.New()
		router.GET("/", middleware.RequireSession(auth), func(c *gin.Context) {
			seen = middleware.GetUser(c.Request.Context())
			Expect(middleware.GetSessionID(c.Request.Context())).To(Equal(int64(42)))
			ok(c)
		})
	})

	withSession := func(id string) func(*http.Request) {
		return func(r *http.Request) { r.Header.Set(middleware.SessionIDHeader, id) }
	}

	It("returns 401 without a session header", func() {
		w := serve(router, http.MethodGet, "/", nil)

		Expect(w.Code).To(Equal(http.StatusUnauthorized))
		Expect(w.Body.String()).To(MatchJSON(`{"error":"not authenticated"}`))
	})

	It("returns 401 for a malformed session id", func() {
		w := serve(router, http.MethodGet, "/", withSession("abc"))

		Expect(w.Code).To(Equal(http.StatusUnauthorized))
	})

	It("returns 401 for an expired session", func() {
		w := serve(router, http.MethodGet, "/", withSession("43"))

		Expect(w.Code).To(Equal(http.StatusUnauthorized))
		Expect(w.Body.String()).To(MatchJSON(`{"error":"session expired"}`))
	})

	It("returns 500 when the session lookup fails", func() {
		auth.err = errors.New("db down")

		w := serve(router, http.MethodGet, "/", withSession("42"))

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
	})

	It("stores the user on the context", func() {
		w := serve(router, http.MethodGet, "/", withSession("42"))

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(seen).NotTo(BeNil())
		Expect(seen.ID).To(Equal(int64(7)))
	})
})

var _ = Describe("RequireOrganization and RequireRole", func() {
	orgID := int64(100)

	build := func(user *model.User) *gin.Engine {
		r := gin.New()
		setUser := func(c *gin.Context) {
			if user != nil {
				c.Request = c.Request.WithContext(middleware.WithUser(c.Request.Context(), user, 1))
			}
		}
		r.GET("/", setUser, middleware.RequireOrganization(), middleware.RequireRole(model.RoleAdmin), ok)
		return r
	}

	It("rejects anonymous callers", func() {
		Expect(serve(build(nil), http.MethodGet, "/", nil).Code).To(Equal(http.StatusUnauthorized))
	})

	It("rejects users without an organization", func() {
		w := serve(build(&model.User{ID: 1, Role: model.RoleAdmin}), http.MethodGet, "/", nil)

		Expect(w.Code).To(Equal(http.StatusForbidden))
		Expect(w.Body.String()).To(MatchJSON(`{"error":"organization membership required"}`))
	})

	It("rejects members on admin routes", func() {
		w := serve(build(&model.User{ID: 1, Role: model.RoleMember, OrganizationID: &orgID}), http.MethodGet, "/", nil)

		Expect(w.Code).To(Equal(http.StatusForbidden))
		Expect(w.Body.String()).To(MatchJSON(`{"error":"admin role required"}`))
	})

	It("lets admins through", func() {
		w := serve(build(&model.User{ID: 1, Role: model.RoleAdmin, OrganizationID: &orgID}), http.MethodGet, "/", nil)

		Expect(w.Code).To(Equal(http.StatusOK))
	})

	It("exposes the organization id", func() {
		ctx := middleware.WithUser(context.Background(), &model.User{ID: 1, OrganizationID: &orgID}, 1)

		Expect(middleware.OrganizationID(ctx)).To(Equal(orgID))
		Expect(middleware.OrganizationID(context.Background())).To(BeZero())
	})
})

var _ = Describe("SecurityHeaders", func() {
	It("sets the browser hardening headers", func() {
		r := gin.New()
		r.GET("/", middleware.SecurityHeaders(true), ok)

		w := serve(r, http.MethodGet, "/", nil)

		Expect(w.Header().Get("X-Frame-Options")).To(Equal("DENY"))
		Expect(w.Header().Get("X-Content-Type-Options")).To(Equal("nosniff"))
		Expect(w.Header().Get("Content-Security-Policy")).To(ContainSubstring("default-src 'none'"))
		Expect(w.Header().Get("Referrer-Policy")).To(Equal("strict-origin-when-cross-origin"))
		Expect(w.Header().Get("Strict-Transport-Security")).NotTo(BeEmpty())
	})

	It("skips HSTS outside production", func() {
		r := gin.New()
		r.GET("/", middleware.SecurityHeaders(false), ok)

		Expect(serve(r, http.MethodGet, "/", nil).Header().Get("Strict-Transport-Security")).To(BeEmpty())
	})
})

var _ = Describe("BodyLimit", func() {
	var router *gin.Engine

	BeforeEach(func() {
		router = gin.New()
		router.POST("/", middleware.BodyLimit(16), func(c *gin.Context) {
			var body map[string]any
			if err := c.ShouldBindJSON(&body); err != nil {
				var maxErr *http.MaxBytesError
				if errors.As(err, &maxErr) {
					c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
					return
				}
				c.JSON(http.StatusBadRequest, gin.H{"error": "bad"})
				return
			}
			ok(c)
		})
	})

	post := func(body string, chunked bool) *httptest.ResponseRecorder {
		return serve(router, http.MethodPost, "/", func(r *http.Request) {
			r.Body = io.NopCloser(strings.NewReader(body))
			r.ContentLength = int64(len(body))
			if chunked {
				r.ContentLength = -1
			}
		})
	}

	It("accepts small bodies", func() {
		Expect(post(`{"a":1}`, false).Code).To(Equal(http.StatusOK))
	})

	It("rejects an announced oversized body up front", func() {
		Expect(post(`{"a":"0123456789abcdef"}`, false).Code).To(Equal(http.StatusRequestEntityTooLarge))
	})

	It("stops reading an unannounced oversized body", func() {
		Expect(post(`{"a":"0123456789abcdef"}`, true).Code).To(Equal(http.StatusRequestEntityTooLarge))
	})
})

var _ = Describe("Recovery", func() {
	It("turns a panic into a JSON 500", func() {
		r := gin.New()
		r.Use(middleware.Recovery(), middleware.Logger())
		r.GET("/", func(*gin.Context) { panic("boom") })

		w := serve(r, http.MethodGet, "/", nil)

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
		Expect(w.Body.String()).To(MatchJSON(`{"error":"internal server error"}`))
	})
})
