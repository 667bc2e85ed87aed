package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"comassist/internal/domain"
	"comassist/internal/engine"
	"comassist/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"content item not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the L'Assistant Com' API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("L'Assistant Com' API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerPlan(group, cfg.Engine)
	registerRoutine(group, cfg.Engine)
	registerContent(group, cfg.Engine)
	registerEngagement(group, cfg.Engine)
	registerBranding(group, cfg.Engine)
	registerScore(group, cfg.Engine)
	registerStreaks(group, cfg.Engine)
	registerBadges(group, cfg.Engine)
	registerAudits(group, cfg.Engine)
	registerNotifications(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerMe(group)
	registerDevAuth(group, cfg.Auth)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "transition"):
		return newAPIError(http.StatusConflict, "invalid_transition", msg, nil)
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "unknown") || strings.Contains(lowered, "required"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	openPaths := map[string]bool{
		"/" + strings.TrimPrefix(path.Join(basePath, "health"), "/"):         true,
		"/" + strings.TrimPrefix(path.Join(basePath, "auth/dev/login"), "/"): true,
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if openPaths[route] {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>L'Assistant Com' API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

type UserPath struct {
	UserID string `path:"user_id"`
}

// requireUserAccess rejects requests against another user's data. Applied
// to every user-scoped route, reads included, so one tenant can never see
// another's rows.
func requireUserAccess(ctx context.Context, userID string) huma.StatusError {
	principalID, authErr := userIDFromContext(ctx)
	if authErr != nil {
		return authErr
	}
	if principalID != userID {
		return newAPIError(http.StatusForbidden, "forbidden", "user mismatch", map[string]any{"user_id": userID})
	}
	return nil
}

func registerPlan(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-plan",
		Method:      http.MethodGet,
		Path:        "/users/{user_id}/plan",
		Summary:     "Get communication plan",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *UserPath) (*struct {
		Body domain.CommPlan `json:"body"`
	}, error) {
		if err := requireUserAccess(ctx, input.UserID); err != nil {
			return nil, err
		}
		plan, err := e.Repo.GetCommPlan(ctx, input.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.CommPlan `json:"body"`
		}{Body: plan}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "put-plan",
		Method:      http.MethodPut,
		Path:        "/users/{user_id}/plan",
		Summary:     "Save communication plan",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		UserPath
		Body PlanRequest `json:"body"`
	}) (*struct {
		Body domain.CommPlan `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if err := requireUserAccess(ctx, input.UserID); err != nil {
			return nil, err
		}
		plan, err := e.SaveCommPlan(ctx, domain.CommPlan{
			UserID:               input.UserID,
			DailyTime:            input.Body.DailyTime,
			ActiveDays:           input.Body.ActiveDays,
			Channels:             input.Body.Channels,
			InstaPostsPerWeek:    input.Body.InstaPostsPerWeek,
			InstaStoriesPerWeek:  input.Body.InstaStoriesPerWeek,
			InstaReelsPerMonth:   input.Body.InstaReelsPerMonth,
			LinkedinPostsPerWeek: input.Body.LinkedinPostsPerWeek,
			NewsletterFrequency:  input.Body.NewsletterFrequency,
			MonthlyGoal:          input.Body.MonthlyGoal,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.CommPlan `json:"body"`
		}{Body: plan}, nil
	})
}

func registerRoutine(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-routine-tasks",
		Method:      http.MethodGet,
		Path:        "/users/{user_id}/routine",
		Summary:     "Generated routine tasks",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *UserPath) (*struct {
		Body []domain.GeneratedTask `json:"body"`
	}, error) {
		if err := requireUserAccess(ctx, input.UserID); err != nil {
			return nil, err
		}
		tasks, err := e.RoutineTasks(ctx, input.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.GeneratedTask `json:"body"`
		}{Body: nonNilSlice(tasks)}, nil
	})
}

func registerContent(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-content",
		Method:        http.MethodPost,
		Path:          "/users/{user_id}/content",
		Summary:       "Create content item",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		UserPath
		Body CreateContentRequest `json:"body"`
	}) (*struct {
		Body domain.ContentItem `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if err := requireUserAccess(ctx, input.UserID); err != nil {
			return nil, err
		}
		opts := engine.ContentCreateOptions{
			UserID:  input.UserID,
			Channel: input.Body.Channel,
			Format:  input.Body.Format,
			Title:   input.Body.Title,
			Status:  input.Body.Status,
			Date:    input.Body.Date,
		}
		if input.Body.ID != nil {
			opts.ID = *input.Body.ID
		}
		item, err := e.CreateContent(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ContentItem `json:"body"`
		}{Body: item}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-content",
		Method:      http.MethodGet,
		Path:        "/users/{user_id}/content",
		Summary:     "List content items",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		UserPath
		Channel string `query:"channel"`
		Status  string `query:"status" enum:",idea,a_rediger,drafting,ready,published"`
		From    string `query:"from"`
		To      string `query:"to"`
		Limit   int    `query:"limit" default:"100"`
	}) (*struct {
		Body []domain.ContentItem `json:"body"`
	}, error) {
		if err := requireUserAccess(ctx, input.UserID); err != nil {
			return nil, err
		}
		items, err := e.Repo.ListContentItems(ctx, repo.ContentFilters{
			UserID:   input.UserID,
			Channel:  input.Channel,
			Status:   input.Status,
			DateFrom: input.From,
			DateTo:   input.To,
			Limit:    normalizeLimit(input.Limit),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.ContentItem `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-content",
		Method:      http.MethodGet,
		Path:        "/users/{user_id}/content/{content_id}",
		Summary:     "Get content item",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		UserPath
		ContentID string `path:"content_id"`
	}) (*struct {
		Body domain.ContentItem `json:"body"`
	}, error) {
		if err := requireUserAccess(ctx, input.UserID); err != nil {
			return nil, err
		}
		item, err := e.Repo.GetContentItem(ctx, input.ContentID)
		if err != nil {
			return nil, handleError(err)
		}
		if item.UserID != input.UserID {
			return nil, handleError(repo.ErrNotFound)
		}
		return &struct {
			Body domain.ContentItem `json:"body"`
		}{Body: item}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-content-status",
		Method:      http.MethodPost,
		Path:        "/users/{user_id}/content/{content_id}/status",
		Summary:     "Move content through its lifecycle",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		UserPath
		ContentID string               `path:"content_id"`
		Body      ContentStatusRequest `json:"body"`
	}) (*struct {
		Body domain.ContentItem `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if err := requireUserAccess(ctx, input.UserID); err != nil {
			return nil, err
		}
		item, err := e.Repo.GetContentItem(ctx, input.ContentID)
		if err != nil || item.UserID != input.UserID {
			return nil, handleError(repo.ErrNotFound)
		}
		item, err = e.SetContentStatus(ctx, input.ContentID, input.Body.Status, input.Body.Force)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ContentItem `json:"body"`
		}{Body: item}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "publish-content",
		Method:      http.MethodPost,
		Path:        "/users/{user_id}/content/{content_id}/publish",
		Summary:     "Publish content item",
		Errors: []int{
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		UserPath
		ContentID string `path:"content_id"`
		Force     bool   `query:"force"`
	}) (*struct {
		Body domain.ContentItem `json:"body"`
	}, error) {
		if err := requireUserAccess(ctx, input.UserID); err != nil {
			return nil, err
		}
		item, err := e.Repo.GetContentItem(ctx, input.ContentID)
		if err != nil || item.UserID != input.UserID {
			return nil, handleError(repo.ErrNotFound)
		}
		item, err = e.PublishContent(ctx, input.ContentID, input.Force)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ContentItem `json:"body"`
		}{Body: item}, nil
	})
}

func registerEngagement(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "log-engagement",
		Method:      http.MethodPost,
		Path:        "/users/{user_id}/engagement",
		Summary:     "Log daily engagement",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		UserPath
		Body EngagementRequest `json:"body"`
	}) (*struct {
		Body domain.DailyLog `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if err := requireUserAccess(ctx, input.UserID); err != nil {
			return nil, err
		}
		logEntry, err := e.LogEngagement(ctx, input.UserID, input.Body.LogDate, input.Body.StreakMaintained, input.Body.TasksDone)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.DailyLog `json:"body"`
		}{Body: logEntry}, nil
	})
}

func registerBranding(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-branding",
		Method:      http.MethodGet,
		Path:        "/users/{user_id}/branding",
		Summary:     "Get branding profile",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *UserPath) (*struct {
		Body domain.BrandingProfile `json:"body"`
	}, error) {
		if err := requireUserAccess(ctx, input.UserID); err != nil {
			return nil, err
		}
		b, err := e.Repo.GetBrandingProfile(ctx, input.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.BrandingProfile `json:"body"`
		}{Body: b}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "put-branding",
		Method:      http.MethodPut,
		Path:        "/users/{user_id}/branding",
		Summary:     "Save branding profile",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		UserPath
		Body BrandingRequest `json:"body"`
	}) (*struct {
		Body domain.BrandingProfile `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if err := requireUserAccess(ctx, input.UserID); err != nil {
			return nil, err
		}
		b, err := e.SaveBrandingProfile(ctx, domain.BrandingProfile{
			UserID:       input.UserID,
			Mission:      input.Body.Mission,
			Values:       input.Body.Values,
			Audience:     input.Body.Audience,
			Tone:         input.Body.Tone,
			Palette:      input.Body.Palette,
			Bio:          input.Body.Bio,
			BioValidated: input.Body.BioValidated,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.BrandingProfile `json:"body"`
		}{Body: b}, nil
	})
}

func registerScore(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-score",
		Method:      http.MethodGet,
		Path:        "/users/{user_id}/score",
		Summary:     "Communication score",
		Description: "Recomputed on read. Pass cached=true to serve the latest snapshot instead.",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		UserPath
		Cached bool `query:"cached"`
	}) (*struct {
		Body domain.ComScore `json:"body"`
	}, error) {
		if err := requireUserAccess(ctx, input.UserID); err != nil {
			return nil, err
		}
		if input.Cached {
			score, err := e.Repo.LatestScoreSnapshot(ctx, input.UserID)
			if err != nil {
				return nil, handleError(err)
			}
			return &struct {
				Body domain.ComScore `json:"body"`
			}{Body: score}, nil
		}
		score, err := e.ComputeComScore(ctx, input.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ComScore `json:"body"`
		}{Body: score}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "refresh-score",
		Method:      http.MethodPost,
		Path:        "/users/{user_id}/score/refresh",
		Summary:     "Recompute and cache the score",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *UserPath) (*struct {
		Body domain.ComScore `json:"body"`
	}, error) {
		if err := requireUserAccess(ctx, input.UserID); err != nil {
			return nil, err
		}
		score, err := e.RefreshScore(ctx, input.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ComScore `json:"body"`
		}{Body: score}, nil
	})
}

func registerStreaks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-streaks",
		Method:      http.MethodGet,
		Path:        "/users/{user_id}/streaks",
		Summary:     "Week history and current streak",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		UserPath
		Weeks int `query:"weeks" default:"12" minimum:"1" maximum:"52"`
	}) (*struct {
		Body StreaksResponse `json:"body"`
	}, error) {
		if err := requireUserAccess(ctx, input.UserID); err != nil {
			return nil, err
		}
		weeks, err := e.WeekHistory(ctx, input.UserID, input.Weeks)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body StreaksResponse `json:"body"`
		}{Body: StreaksResponse{
			Weeks:  nonNilSlice(weeks),
			Streak: engine.ConsecutiveStreaks(weeks),
		}}, nil
	})
}

func registerBadges(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-badges",
		Method:      http.MethodGet,
		Path:        "/users/{user_id}/badges",
		Summary:     "Badge catalogue with unlock state",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *UserPath) (*struct {
		Body []BadgeResponse `json:"body"`
	}, error) {
		if err := requireUserAccess(ctx, input.UserID); err != nil {
			return nil, err
		}
		unlocked, err := e.Repo.ListUnlockedBadges(ctx, input.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []BadgeResponse `json:"body"`
		}{Body: badgeResponses(unlocked)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "check-badges",
		Method:      http.MethodPost,
		Path:        "/users/{user_id}/badges/check",
		Summary:     "Evaluate badge predicates and unlock new badges",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *UserPath) (*struct {
		Body CheckBadgesResponse `json:"body"`
	}, error) {
		if err := requireUserAccess(ctx, input.UserID); err != nil {
			return nil, err
		}
		newBadges, err := e.CheckBadges(ctx, input.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CheckBadgesResponse `json:"body"`
		}{Body: CheckBadgesResponse{NewBadges: nonNilSlice(newBadgeResponses(newBadges))}}, nil
	})
}

func registerAudits(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "submit-audit",
		Method:        http.MethodPost,
		Path:          "/users/{user_id}/audits",
		Summary:       "Score and record a website audit",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		UserPath
		Body AuditSubmitRequest `json:"body"`
	}) (*struct {
		Body AuditScoreResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if err := requireUserAccess(ctx, input.UserID); err != nil {
			return nil, err
		}
		_, result, err := e.RecordAudit(ctx, input.UserID, input.Body.Answers)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AuditScoreResponse `json:"body"`
		}{Body: auditScoreResponse(result)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-audits",
		Method:      http.MethodGet,
		Path:        "/users/{user_id}/audits",
		Summary:     "Audit history, newest first",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		UserPath
		Limit int `query:"limit" default:"20"`
	}) (*struct {
		Body []AuditResponse `json:"body"`
	}, error) {
		if err := requireUserAccess(ctx, input.UserID); err != nil {
			return nil, err
		}
		audits, err := e.Repo.ListAudits(ctx, input.UserID, normalizeLimit(input.Limit))
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]AuditResponse, 0, len(audits))
		for _, a := range audits {
			out = append(out, auditResponse(a))
		}
		return &struct {
			Body []AuditResponse `json:"body"`
		}{Body: out}, nil
	})

	// Pure scoring endpoint: nothing is persisted.
	huma.Register(api, huma.Operation{
		OperationID: "score-audit",
		Method:      http.MethodPost,
		Path:        "/audit/score",
		Summary:     "Score audit answers without recording them",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body AuditScoreRequest `json:"body"`
	}) (*struct {
		Body AuditScoreResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if len(input.Body.Pages) > 0 {
			pages := engine.CalculatePageByPageScore(input.Body.Pages)
			return &struct {
				Body AuditScoreResponse `json:"body"`
			}{Body: AuditScoreResponse{
				Total: pages.Total,
				Label: engine.WebsiteScoreLabel(pages.Total),
				Pages: pages.Pages,
			}}, nil
		}
		result := engine.CalculateWebsiteAuditScore(input.Body.Answers)
		return &struct {
			Body AuditScoreResponse `json:"body"`
		}{Body: auditScoreResponse(result)}, nil
	})
}

func registerNotifications(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-notifications",
		Method:      http.MethodGet,
		Path:        "/users/{user_id}/notifications",
		Summary:     "List notifications",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		UserPath
		Unread bool `query:"unread"`
		Limit  int  `query:"limit" default:"50"`
	}) (*struct {
		Body []domain.Notification `json:"body"`
	}, error) {
		if err := requireUserAccess(ctx, input.UserID); err != nil {
			return nil, err
		}
		items, err := e.Repo.ListNotifications(ctx, repo.NotificationFilters{
			UserID:     input.UserID,
			UnreadOnly: input.Unread,
			Limit:      normalizeLimit(input.Limit),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Notification `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "read-notification",
		Method:      http.MethodPost,
		Path:        "/users/{user_id}/notifications/{notification_id}/read",
		Summary:     "Mark notification as read",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		UserPath
		NotificationID string `path:"notification_id"`
	}) (*struct{}, error) {
		if err := requireUserAccess(ctx, input.UserID); err != nil {
			return nil, err
		}
		if err := e.Repo.MarkNotificationRead(ctx, input.UserID, input.NotificationID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/users/{user_id}/events",
		Summary:     "List recent events",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		UserPath
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		if err := requireUserAccess(ctx, input.UserID); err != nil {
			return nil, err
		}
		items, err := e.Repo.LatestEvents(ctx, normalizeLimit(input.Limit), input.UserID, input.Type, input.EntityKind, input.EntityID)
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}

func registerMe(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current principal",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body WhoAmIResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		return &struct {
			Body WhoAmIResponse `json:"body"`
		}{Body: WhoAmIResponse{
			UserID: principal.UserID,
			Source: principal.Source,
		}}, nil
	})
}

func registerDevAuth(api huma.API, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		if !authCfg.EnableDevLogin {
			return nil, newAPIError(http.StatusForbidden, "forbidden", "dev login disabled", nil)
		}
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		userID := strings.TrimSpace(input.Body.UserID)
		if userID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "user_id is required", nil)
		}
		token, err := signDevToken(authCfg.JWTSecret, userID)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token}}, nil
	})
}

func bodyBytes(ctx context.Context) []byte {
	if buf, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return buf
	}
	req, ok := ctx.Value(requestKey{}).(*http.Request)
	if !ok || req == nil {
		return nil
	}
	data, _ := io.ReadAll(req.Body)
	return data
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}
