package errors

import "strings"

// Convenience functions for common error patterns

// Config errors

func ConfigNotFound(path string) *ClassifiedError {
	return New(CategoryConfig, SeverityFatal, "configuration file not found").
		WithContext("path", path)
}

func ConfigInvalid(path string, cause error) *ClassifiedError {
	return Wrap(cause, CategoryConfig, SeverityFatal, "configuration file invalid").
		WithContext("path", path)
}

func ValidationFailed(field, reason string) *ClassifiedError {
	return New(CategoryValidation, SeverityFatal, "validation failed").
		WithContext("field", field).
		WithContext("reason", reason)
}

// Input declaration errors

func ManifestInvalid(path string, cause error) *ClassifiedError {
	return Wrap(cause, CategoryManifest, SeverityFatal, "library manifest invalid").
		WithContext("path", path)
}

func DeclarationInvalid(path string, cause error) *ClassifiedError {
	return Wrap(cause, CategoryConfig, SeverityFatal, "project declaration invalid").
		WithContext("path", path)
}

func DuplicateProject(name, first, second string) *ClassifiedError {
	return New(CategoryValidation, SeverityFatal, "duplicate project name").
		WithContext("project", name).
		WithContext("first", first).
		WithContext("second", second)
}

// Remote package errors

func FetchFailed(pkg, url string, cause error) *ClassifiedError {
	return WrapRetryable(cause, CategoryNetwork, SeverityWarning, "package fetch failed").
		WithContext("package", pkg).
		WithContext("url", url)
}

func CloneFailed(pkg, url string, cause error) *ClassifiedError {
	return WrapRetryable(cause, CategoryGit, SeverityWarning, "package clone failed").
		WithContext("package", pkg).
		WithContext("url", url)
}

// Notification errors

func NotifyFailed(subject string, cause error) *ClassifiedError {
	return WrapRetryable(cause, CategoryNotify, SeverityWarning, "run notification failed").
		WithContext("subject", subject)
}

// Generation errors

func CyclesRejected(cycles []string) *ClassifiedError {
	return New(CategoryResolution, SeverityFatal, "dependency cycles detected").
		WithContext("cycles", strings.Join(cycles, "; "))
}

func RenderFailed(renderer string, cause error) *ClassifiedError {
	return Wrap(cause, CategoryRender, SeverityFatal, "rendering failed").
		WithContext("renderer", renderer)
}

func WriteFailed(path string, cause error) *ClassifiedError {
	return Wrap(cause, CategoryFileSystem, SeverityFatal, "artifact write failed").
		WithContext("path", path)
}

// Internal errors

func InternalError(message string, cause error) *ClassifiedError {
	return Wrap(cause, CategoryInternal, SeverityFatal, message)
}
