package services

import "time"

// Clock 时间来源，测试中可替换
type Clock interface {
	Now() time.Time
}

// SystemClock 使用系统UTC时间
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
