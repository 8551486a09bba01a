package mockplatform

import (
	"fmt"
	"sync"
	"time"

	"github.com/wyecare/calendar-gateway/internal/config"
	"github.com/wyecare/calendar-gateway/internal/domain"
	"github.com/wyecare/calendar-gateway/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

// User 是平台侧的员工账号
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	FullName     string `json:"fullName"`
}

// Store 在内存中模拟平台侧的数据，用于本地联调网关
// 可用时段按 (userID, date) 存放：对同一 (date, period) 的重复提交天然幂等，
// 不会产生重复记录
type Store struct {
	mu           sync.Mutex
	users        map[string]*User
	availability map[int64]map[domain.DateKey]*domain.AvailabilityRecord
	shifts       map[int64][]domain.ShiftAssignmentRecord
	nextRecordID int64
}

func NewStore() *Store {
	return &Store{
		users:        make(map[string]*User),
		availability: make(map[int64]map[domain.DateKey]*domain.AvailabilityRecord),
		shifts:       make(map[int64][]domain.ShiftAssignmentRecord),
		nextRecordID: 1,
	}
}

// Seed 生成测试账号和随机的日历数据
// 账号为 employee1..employeeN，密码统一取配置中的种子密码
func (s *Store) Seed(cfg *config.Config) error {
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(cfg.MockPlatform.SeedPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	rng := domain.MonthRange(time.Now()).Buffered(cfg.Calendar.BufferDays)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 1; i <= cfg.MockPlatform.SeedUsers; i++ {
		userID := int64(i)
		username := fmt.Sprintf("employee%d", i)
		s.users[username] = &User{
			ID:           userID,
			Username:     username,
			PasswordHash: string(passwordHash),
			FullName:     fmt.Sprintf("测试员工 %s", utils.GenerateRandomID(4)),
		}

		s.availability[userID] = make(map[domain.DateKey]*domain.AvailabilityRecord)
		for _, record := range utils.GenerateRandomAvailability(rng) {
			record.ID = s.nextRecordID
			s.nextRecordID++
			key, _ := domain.NormalizeDate(record.Date)
			s.availability[userID][key] = &record
		}

		shifts := utils.GenerateRandomShiftAssignments(rng)
		for i := range shifts {
			shifts[i].ID = s.nextRecordID
			s.nextRecordID++
		}
		s.shifts[userID] = shifts
	}

	return nil
}

// GetUser 按用户名查找账号，不存在时返回 nil
func (s *Store) GetUser(username string) *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[username]
}

// ListAvailability 返回某个用户在范围内的全部可用时段记录，按日期升序
func (s *Store) ListAvailability(userID int64, rng domain.DateRange) []domain.AvailabilityRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]domain.AvailabilityRecord, 0)
	byDate := s.availability[userID]
	for _, day := range rng.Days() {
		if record, exists := byDate[day]; exists {
			records = append(records, *record)
		}
	}
	return records
}

// UpsertAvailability 更新某一天的可用时段，period 为 nil 时删除该日记录
func (s *Store) UpsertAvailability(userID int64, key domain.DateKey, period *domain.PeriodValue) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byDate, exists := s.availability[userID]
	if !exists {
		byDate = make(map[domain.DateKey]*domain.AvailabilityRecord)
		s.availability[userID] = byDate
	}

	if period == nil {
		delete(byDate, key)
		return
	}

	if record, exists := byDate[key]; exists {
		record.Period = string(*period)
		return
	}

	byDate[key] = &domain.AvailabilityRecord{
		ID:     s.nextRecordID,
		Date:   string(key),
		Period: string(*period),
	}
	s.nextRecordID++
}

// SetShiftAssignments 整体替换某个用户的排班记录，本地联调和测试用
func (s *Store) SetShiftAssignments(userID int64, records []domain.ShiftAssignmentRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shifts[userID] = records
}

// ListShiftAssignments 返回某个用户在范围内的排班记录
func (s *Store) ListShiftAssignments(userID int64, rng domain.DateRange) []domain.ShiftAssignmentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]domain.ShiftAssignmentRecord, 0)
	for _, record := range s.shifts[userID] {
		key, err := domain.NormalizeDate(record.Date)
		if err != nil {
			continue
		}
		if rng.From <= key && key <= rng.To {
			records = append(records, record)
		}
	}
	return records
}
