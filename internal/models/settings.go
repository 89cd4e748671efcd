package models

import "encoding/json"

// CreditPackage — пакет кредитов, покупаемый через внешний платёжный канал.
type CreditPackage struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Price   int    `json:"price"`
	Credits int    `json:"credits"`
}

// MilestoneReward — строка таблицы наград за учебное время.
type MilestoneReward struct {
	Seconds       int    `json:"seconds"`
	Kind          string `json:"kind"`
	Amount        int    `json:"amount,omitempty"`
	Level         string `json:"level,omitempty"`
	DurationHours int    `json:"duration_hours,omitempty"`
	Label         string `json:"label"`
}

// Settings — общесистемная конфигурация, загружаемая из локального кеша при
// старте и затем непрерывно замещаемая удалёнными обновлениями. Отсутствие
// поля означает откат к зашитому значению, а не ошибку версии.
type Settings struct {
	AppName         string            `json:"app_name,omitempty"`
	MaintenanceMode bool              `json:"maintenance_mode,omitempty"`
	MarqueeLines    []string          `json:"marquee_lines,omitempty"`
	DailyReward     int               `json:"daily_reward,omitempty"`
	SignupBonus     int               `json:"signup_bonus,omitempty"`
	WheelRewards    []int             `json:"wheel_rewards,omitempty"`
	SpinLimitFree   int               `json:"spin_limit_free,omitempty"`
	SpinLimitBasic  int               `json:"spin_limit_basic,omitempty"`
	SpinLimitUltra  int               `json:"spin_limit_ultra,omitempty"`
	GameEnabled     *bool             `json:"game_enabled,omitempty"`
	Packages        []CreditPackage   `json:"packages,omitempty"`
	Milestones      []MilestoneReward `json:"milestones,omitempty"`
	AdminPhone      string            `json:"admin_phone,omitempty"`

	Extensions map[string]json.RawMessage `json:"extensions,omitempty"`
}

// DefaultSettings возвращает зашитые значения по умолчанию.
func DefaultSettings() Settings {
	enabled := true
	return Settings{
		AppName:        "NST",
		DailyReward:    3,
		SignupBonus:    2,
		WheelRewards:   []int{0, 1, 2, 5},
		SpinLimitFree:  2,
		SpinLimitBasic: 5,
		SpinLimitUltra: 10,
		GameEnabled:    &enabled,
		AdminPhone:     "8227070298",
		Packages: []CreditPackage{
			{ID: "pkg-1", Name: "Starter Pack", Price: 100, Credits: 150},
			{ID: "pkg-2", Name: "Value Pack", Price: 200, Credits: 350},
			{ID: "pkg-3", Name: "Pro Pack", Price: 500, Credits: 1500},
			{ID: "pkg-4", Name: "Ultra Pack", Price: 1000, Credits: 3000},
		},
		Milestones: []MilestoneReward{
			{Seconds: 600, Kind: RewardCoins, Amount: 2, Label: "10 Mins Study: 2 Coins"},
			{Seconds: 1800, Kind: RewardCoins, Amount: 4, Label: "30 Mins Study: 4 Coins"},
			{Seconds: 3600, Kind: RewardSubscription, Level: LevelBasic, DurationHours: 4, Label: "1 Hour Study: Free Basic Sub (4h)"},
			{Seconds: 7200, Kind: RewardSubscription, Level: LevelUltra, DurationHours: 4, Label: "2 Hours Study: Free Ultra Sub (4h)"},
		},
	}
}

// WithDefaults возвращает копию настроек, в которой отсутствующие поля
// заменены значениями по умолчанию. Проверка по полям, не по всей записи:
// частично заполненный снапшот старой версии остаётся рабочим.
func (s Settings) WithDefaults() Settings {
	def := DefaultSettings()
	if s.AppName == "" {
		s.AppName = def.AppName
	}
	if s.DailyReward == 0 {
		s.DailyReward = def.DailyReward
	}
	if s.SignupBonus == 0 {
		s.SignupBonus = def.SignupBonus
	}
	if len(s.WheelRewards) == 0 {
		s.WheelRewards = def.WheelRewards
	}
	if s.SpinLimitFree == 0 {
		s.SpinLimitFree = def.SpinLimitFree
	}
	if s.SpinLimitBasic == 0 {
		s.SpinLimitBasic = def.SpinLimitBasic
	}
	if s.SpinLimitUltra == 0 {
		s.SpinLimitUltra = def.SpinLimitUltra
	}
	if s.GameEnabled == nil {
		s.GameEnabled = def.GameEnabled
	}
	if len(s.Packages) == 0 {
		s.Packages = def.Packages
	}
	if len(s.Milestones) == 0 {
		s.Milestones = def.Milestones
	}
	if s.AdminPhone == "" {
		s.AdminPhone = def.AdminPhone
	}
	return s
}
