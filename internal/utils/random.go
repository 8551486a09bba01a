package utils

import (
	"math/rand"

	"github.com/wyecare/calendar-gateway/internal/domain"
)

var periods = []domain.PeriodValue{
	domain.PeriodDay,
	domain.PeriodNight,
	domain.PeriodBoth,
}

func GenerateRandomPeriod() domain.PeriodValue {
	return periods[rand.Intn(len(periods))]
}

var shiftStatuses = []domain.ShiftStatus{
	domain.ShiftStatusPending,
	domain.ShiftStatusApproved,
	domain.ShiftStatusRejected,
	domain.ShiftStatusCompleted,
}

func GenerateRandomShiftStatus() domain.ShiftStatus {
	return shiftStatuses[rand.Intn(len(shiftStatuses))]
}

// GenerateRandomAvailability 在给定范围内随机标记大约一半的日期
func GenerateRandomAvailability(rng domain.DateRange) []domain.AvailabilityRecord {
	records := make([]domain.AvailabilityRecord, 0)
	nextID := int64(1)

	for _, day := range rng.Days() {
		if rand.Intn(2) == 0 {
			continue
		}
		records = append(records, domain.AvailabilityRecord{
			ID:     nextID,
			Date:   string(day),
			Period: string(GenerateRandomPeriod()),
		})
		nextID++
	}
	return records
}

// GenerateRandomShiftAssignments 在给定范围内随机生成排班，约三分之一的日期有排班
func GenerateRandomShiftAssignments(rng domain.DateRange) []domain.ShiftAssignmentRecord {
	records := make([]domain.ShiftAssignmentRecord, 0)
	nextID := int64(1)

	for _, day := range rng.Days() {
		if rand.Intn(3) != 0 {
			continue
		}

		// 同一天可能有早晚两个班
		count := rand.Intn(2) + 1
		for i := 0; i < count; i++ {
			records = append(records, domain.ShiftAssignmentRecord{
				ID:           nextID,
				Date:         string(day),
				Status:       string(GenerateRandomShiftStatus()),
				IsNightShift: i > 0 || rand.Intn(2) == 0,
			})
			nextID++
		}
	}
	return records
}

var letters = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")

func GenerateRandomID(length int) string {
	random_id := make([]rune, length)
	for i := range random_id {
		random_id[i] = letters[rand.Intn(len(letters))]
	}
	return string(random_id)
}
