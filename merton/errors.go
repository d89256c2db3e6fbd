package merton

import "errors"

var (
	// ErrInvalidParams 参数集不满足有限/非负约束。
	ErrInvalidParams = errors.New("merton: invalid params")
	// ErrInvalidConfig 校准器配置非法。
	ErrInvalidConfig = errors.New("merton: invalid config")
	// ErrInvalidArgument 定价入参非法（负期限、非有限利率等），下游报价不能消费该结果。
	ErrInvalidArgument = errors.New("merton: invalid argument")
	// ErrReferenceUnavailable 参考定价路径失败，仅用于监控，不影响快速定价。
	ErrReferenceUnavailable = errors.New("merton: reference evaluator unavailable")
)
