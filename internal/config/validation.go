package config

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// ParseCronSchedule validates a standard five-field cron expression.
func ParseCronSchedule(schedule string) error {
	if schedule == "" {
		return fmt.Errorf("empty schedule")
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return err
	}
	return nil
}
