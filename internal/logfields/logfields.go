package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyStage      = "stage"
	KeyDurationMS = "duration_ms"
	KeyProject    = "project"
	KeyLibrary    = "library"
	KeyDependency = "dependency"
	KeyPackage    = "package"
	KeyModule     = "module"
	KeyPath       = "path"
	KeyURL        = "url"
	KeyReason     = "reason"
	KeyPlatform   = "platform"
	KeyConfig     = "configuration"
	KeyCount      = "count"
	KeyPass       = "pass"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr { return slog.String(KeyRunID, id) }
func Stage(name string) slog.Attr { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Project(name string) slog.Attr { return slog.String(KeyProject, name) }
func Library(name string) slog.Attr { return slog.String(KeyLibrary, name) }
func Dependency(target string) slog.Attr { return slog.String(KeyDependency, target) }
func Package(name string) slog.Attr { return slog.String(KeyPackage, name) }
func Module(name string) slog.Attr { return slog.String(KeyModule, name) }
func Path(p string) slog.Attr { return slog.String(KeyPath, p) }
func URL(u string) slog.Attr { return slog.String(KeyURL, u) }
func Reason(r string) slog.Attr { return slog.String(KeyReason, r) }
func Platform(p string) slog.Attr { return slog.String(KeyPlatform, p) }
func Configuration(c string) slog.Attr { return slog.String(KeyConfig, c) }
func Count(n int) slog.Attr { return slog.Int(KeyCount, n) }
func Pass(n int) slog.Attr { return slog.Int(KeyPass, n) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
