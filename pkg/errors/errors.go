package errors

import "errors"

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ErrRecordLocked 成绩单已锁定，禁止自动写入
var ErrRecordLocked = errors.New("成绩单已锁定")
