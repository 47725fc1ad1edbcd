package errors

import "errors"

// ── 同步管线共享错误 ──

// ErrSyncInProgress 已有同步任务持有互斥锁，本次运行放弃
var ErrSyncInProgress = errors.New("已有同步任务在执行中")

// ErrSourceUnavailable 课表来源（发布页或表格文件）不可用，任务级致命错误
var ErrSourceUnavailable = errors.New("课表来源不可用")

// ErrSourceLinkNotFound 发布页中未找到匹配的表格链接
var ErrSourceLinkNotFound = errors.New("未在发布页中找到课表链接")
