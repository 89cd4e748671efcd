package models

// ActivityDay — счётчик учебной активности за один календарный день.
// Кроме сырых секунд хранит список уже сработавших порогов: счётчик может
// быть перечитан из хранилища при возобновлении сессии, и один и тот же
// порог не должен сработать дважды.
type ActivityDay struct {
	UserUID         string `json:"user_uid"`
	Day             string `json:"day"`
	Seconds         int    `json:"seconds"`
	FiredThresholds []int  `json:"fired_thresholds,omitempty"`
	GoalClaimed     bool   `json:"goal_claimed,omitempty"`
	LookbackDone    bool   `json:"lookback_done,omitempty"`
}

// HasFired сообщает, сработал ли уже порог threshold в этот день.
func (d ActivityDay) HasFired(threshold int) bool {
	for _, t := range d.FiredThresholds {
		if t == threshold {
			return true
		}
	}
	return false
}

// MarkFired помечает порог сработавшим.
func (d *ActivityDay) MarkFired(threshold int) {
	if !d.HasFired(threshold) {
		d.FiredThresholds = append(d.FiredThresholds, threshold)
	}
}

// TestAttempt — результат участия в еженедельном тесте.
type TestAttempt struct {
	TestID      string `json:"test_id"`
	TestName    string `json:"test_name"`
	UserUID     string `json:"user_uid"`
	StartedAt   string `json:"started_at"`
	SubmittedAt string `json:"submitted_at"`
	Score       int    `json:"score"`
	Total       int    `json:"total"`
}
