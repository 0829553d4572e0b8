package middleware

import (
	"github.com/labstack/echo/v4"
)

// APIVersion describes the version advertised on every response, plus
// deprecation metadata once a version is scheduled for retirement.
type APIVersion struct {
	Version           string
	DeprecationDate   string // empty while the version is current
	SunsetDate        string
	LatestVersion     string
	DeprecationNotice string
}

// CurrentAPIVersion is what the running binary serves.
var CurrentAPIVersion = APIVersion{
	Version:       "1.0.0",
	LatestVersion: "1.0.0",
}

func (v APIVersion) deprecated() bool {
	return v.DeprecationDate != ""
}

// APIVersionMiddleware stamps version headers on every response, and
// Deprecation/Sunset headers once the served version is being retired.
func APIVersionMiddleware(version APIVersion) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-API-Version", version.Version)
			h.Set("X-API-Latest-Version", version.LatestVersion)

			if version.deprecated() {
				h.Set("X-API-Deprecation-Date", version.DeprecationDate)
				h.Set("Deprecation", "true")

				if version.SunsetDate != "" {
					h.Set("X-API-Sunset-Date", version.SunsetDate)
					h.Set("Sunset", version.SunsetDate)
				}
				if version.DeprecationNotice != "" {
					h.Set("X-API-Deprecation-Notice", version.DeprecationNotice)
				}
			}

			return next(c)
		}
	}
}

// VersionInfo is the body served by the version endpoint.
func VersionInfo(version APIVersion) map[string]interface{} {
	info := map[string]interface{}{
		"version":        version.Version,
		"latest_version": version.LatestVersion,
	}

	if version.deprecated() {
		info["deprecated"] = true
		info["deprecation_date"] = version.DeprecationDate

		if version.SunsetDate != "" {
			info["sunset_date"] = version.SunsetDate
		}
		if version.DeprecationNotice != "" {
			info["deprecation_notice"] = version.DeprecationNotice
		}
	}

	return info
}
