package observability

import (
	"time"

	"github.com/getsentry/sentry-go"
)

// InitSentry 初始化错误上报，DSN 为空时返回空关闭函数
func InitSentry(dsn, env, release string) (func(), error) {
	if dsn == "" {
		return func() {}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: env,
		Release:     release,
	}); err != nil {
		return func() {}, err
	}
	return func() { sentry.Flush(2 * time.Second) }, nil
}

// CaptureErr 上报非空错误
func CaptureErr(err error) {
	if err != nil {
		sentry.CaptureException(err)
	}
}
