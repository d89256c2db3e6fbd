package merton

// TriggerPolicy 决定是否值得（且负担得起）重新校准。
type TriggerPolicy struct {
	MinPoints   int
	EveryNTicks int
}

// NewTriggerPolicy 从配置构造触发策略。
func NewTriggerPolicy(cfg Config) TriggerPolicy {
	return TriggerPolicy{MinPoints: cfg.MinPointsForUpdate, EveryNTicks: cfg.UpdateEveryNReturns}
}

// Due 样本数达到下限且距上次尝试累计了足够多的新收益率。
func (t TriggerPolicy) Due(windowLen, counter int) bool {
	return windowLen >= t.MinPoints && counter >= t.EveryNTicks
}
