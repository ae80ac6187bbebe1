package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/SecuShare/filevault/internal/config"
	"github.com/SecuShare/filevault/internal/ratelimit"
	"github.com/SecuShare/filevault/pkg/response"
	"github.com/gofiber/fiber/v2"
)

// Rule derives one limiter check from a request. An empty key skips the rule.
type Rule struct {
	Name   string
	Limit  int64
	Window time.Duration
	Key    func(c *fiber.Ctx) string
}

// IPRule limits by client address.
func IPRule(cfg config.RateLimitConfig) Rule {
	return Rule{Name: "ip", Limit: cfg.IP, Window: cfg.Window, Key: IPKey}
}

// UserActionRule limits one authenticated user performing one action.
func UserActionRule(cfg config.RateLimitConfig, action string) Rule {
	return Rule{Name: "user", Limit: cfg.User, Window: cfg.Window, Key: UserActionKey(action)}
}

// ResourceRule limits access to the public resource named by the :slug param.
func ResourceRule(cfg config.RateLimitConfig) Rule {
	return Rule{Name: "resource", Limit: cfg.Resource, Window: cfg.Window, Key: ResourceKey}
}

func IPKey(c *fiber.Ctx) string {
	return "ip:" + c.IP()
}

func UserActionKey(action string) func(c *fiber.Ctx) string {
	return func(c *fiber.Ctx) string {
		userID := localUserID(c)
		if userID == "" {
			return ""
		}
		return "u:" + userID + ":" + action
	}
}

func ResourceKey(c *fiber.Ctx) string {
	slug := strings.TrimSpace(c.Params("slug"))
	if slug == "" {
		return ""
	}
	return "file:" + slug
}

// RateLimitMiddleware evaluates every rule and rejects the request when any
// of them is over budget. Headers describe the tightest limiter.
func RateLimitMiddleware(limiter *ratelimit.Limiter, rules ...Rule) fiber.Handler {
	return func(c *fiber.Ctx) error {
		checks := make([]ratelimit.Check, 0, len(rules))
		for _, rule := range rules {
			key := rule.Key(c)
			if key == "" {
				continue
			}
			checks = append(checks, ratelimit.Check{
				Rule:   rule.Name,
				Key:    key,
				Limit:  rule.Limit,
				Window: rule.Window,
			})
		}
		if len(checks) == 0 {
			return c.Next()
		}

		decision := limiter.Evaluate(c.UserContext(), checks...)
		setRateLimitHeaders(c, decision, limiter.Now())

		if err := decision.Err(); err != nil {
			return writeRateLimited(c, decision)
		}
		return c.Next()
	}
}

func setRateLimitHeaders(c *fiber.Ctx, d ratelimit.Decision, now time.Time) {
	c.Set("RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
	c.Set("RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
	c.Set("RateLimit-Reset", strconv.FormatInt(d.ResetSeconds(now), 10))
}

func writeRateLimited(c *fiber.Ctx, d ratelimit.Decision) error {
	c.Set("Retry-After", strconv.FormatInt(d.RetryAfterSeconds, 10))
	return response.TooManyRequests(c, "too many requests, please try again later", fiber.Map{
		"retry_after_seconds": d.RetryAfterSeconds,
		"limits":              d.FailedRules(),
	})
}
