package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"kintai/kintai"
)

type config struct {
	dir          string
	offset       time.Duration
	limits       map[kintai.Category]time.Duration
	pollInterval time.Duration
	adminIDs     map[kintai.PersonID]bool
	schedule     kintai.ScheduleConfig
}

func loadConfig() config {
	_ = godotenv.Load()

	cfg := config{
		dir:          os.Getenv("KINTAI_DIR"),
		offset:       time.Duration(envInt("KINTAI_UTC_OFFSET_HOURS", 7)) * time.Hour,
		limits:       map[kintai.Category]time.Duration{},
		pollInterval: time.Duration(envInt("KINTAI_POLL_MINUTES", 3)) * time.Minute,
		adminIDs:     map[kintai.PersonID]bool{},
		schedule: kintai.ScheduleConfig{
			DailyHour:   envInt("KINTAI_DAILY_REPORT_HOUR", 10),
			WeeklyHour:  envInt("KINTAI_WEEKLY_REPORT_HOUR", 10),
			MonthlyHour: envInt("KINTAI_MONTHLY_REPORT_HOUR", 10),
		},
	}

	for c, d := range kintai.DefaultLimits {
		key := "KINTAI_LIMIT_" + strings.ToUpper(string(c)) + "_MINUTES"
		cfg.limits[c] = time.Duration(envInt(key, int(d/time.Minute))) * time.Minute
	}

	for _, id := range strings.Split(os.Getenv("KINTAI_ADMIN_IDS"), ",") {
		id = strings.TrimSpace(id)
		if id != "" {
			cfg.adminIDs[kintai.PersonID(id)] = true
		}
	}
	return cfg
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
