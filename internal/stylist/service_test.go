package stylist

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/hitoshi/salonlink/internal/model"
	"github.com/hitoshi/salonlink/internal/repository"
	"github.com/hitoshi/salonlink/internal/security"
	"github.com/hitoshi/salonlink/internal/validation"
)

// --- インメモリのリポジトリ ---

type memoryStylists struct {
	mu   sync.Mutex
	rows map[string]*model.StylistProfile
	err  error
}

func newMemoryStylists() *memoryStylists {
	return &memoryStylists{rows: map[string]*model.StylistProfile{}}
}

func (m *memoryStylists) FindByID(ctx context.Context, id string) (*model.StylistProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if sp, ok := m.rows[id]; ok {
		cp := *sp
		return &cp, nil
	}
	return nil, nil
}

func (m *memoryStylists) FindByUserID(ctx context.Context, userID string) (*model.StylistProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sp := range m.rows {
		if sp.UserID == userID {
			cp := *sp
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memoryStylists) Create(ctx context.Context, sp *model.StylistProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rows {
		if existing.UserID == sp.UserID {
			return model.ErrDuplicate
		}
	}
	if sp.ID == "" {
		sp.ID = uuid.NewString()
	}
	cp := *sp
	m.rows[sp.ID] = &cp
	return nil
}

func (m *memoryStylists) Update(ctx context.Context, sp *model.StylistProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[sp.ID]; !ok {
		return model.ErrNotFound
	}
	cp := *sp
	m.rows[sp.ID] = &cp
	return nil
}

func (m *memoryStylists) UpsertContact(ctx context.Context, sp *model.StylistProfile) error {
	return errors.New("not used")
}

func (m *memoryStylists) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return model.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memoryStylists) DeleteOrphaned(ctx context.Context) (int64, error) {
	return 0, nil
}

type memoryServices struct {
	mu   sync.Mutex
	rows map[string]*model.Service
}

func newMemoryServices() *memoryServices {
	return &memoryServices{rows: map[string]*model.Service{}}
}

func (m *memoryServices) ListByStylist(ctx context.Context, stylistID string) ([]*model.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := []*model.Service{}
	for _, s := range m.rows {
		if s.StylistID == stylistID {
			cp := *s
			list = append(list, &cp)
		}
	}
	return list, nil
}

func (m *memoryServices) FindByID(ctx context.Context, id string) (*model.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.rows[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (m *memoryServices) Create(ctx context.Context, s *model.Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = uuid.NewString()
	cp := *s
	m.rows[s.ID] = &cp
	return nil
}

func (m *memoryServices) Update(ctx context.Context, s *model.Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[s.ID]; !ok {
		return model.ErrNotFound
	}
	cp := *s
	m.rows[s.ID] = &cp
	return nil
}

func (m *memoryServices) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return model.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

var (
	_ repository.StylistRepository = (*memoryStylists)(nil)
	_ repository.ServiceRepository = (*memoryServices)(nil)
)

// --- ヘルパー ---

var (
	ownerID = uuid.NewString()
	otherID = uuid.NewString()
	owner   = Actor{UserID: ownerID, Role: model.RoleStylist}
	other   = Actor{UserID: otherID, Role: model.RoleStylist}
	admin   = Actor{UserID: uuid.NewString(), Role: model.RoleAdmin}
)

func newTestService() (*Service, *memoryStylists, *memoryServices) {
	stylists := newMemoryStylists()
	services := newMemoryServices()
	return NewService(stylists, services, security.NewSanitizer(), validation.New(), nil), stylists, services
}

func assertAPIErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	apiErr := model.AsAPIError(err)
	if apiErr == nil {
		t.Fatalf("expected APIError %s, got %v", code, err)
	}
	if apiErr.Code != code {
		t.Errorf("code = %q, want %q (%s)", apiErr.Code, code, apiErr.Message)
	}
}

func createOwned(t *testing.T, svc *Service) *model.StylistProfile {
	t.Helper()
	sp, err := svc.Create(context.Background(), owner, model.StylistInput{BusinessName: "Salon Owner"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	return sp
}

// --- テスト ---

func TestService_Create_SanitizesAndOwnsProfile(t *testing.T) {
	svc, stylists, _ := newTestService()

	sp, err := svc.Create(context.Background(), owner, model.StylistInput{
		BusinessName: "<b>Hair</b> Lab",
		Bio:          `<p>Hello</p><script>alert(1)</script>`,
		Specialties:  []string{"color", "<i>cut</i>"},
		WebsiteURL:   "https://hairlab.example.com",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if sp.UserID != ownerID {
		t.Errorf("UserID = %q, want %q", sp.UserID, ownerID)
	}
	if sp.BusinessName != "Hair Lab" {
		t.Errorf("BusinessName = %q, want %q", sp.BusinessName, "Hair Lab")
	}
	if sp.Bio != "<p>Hello</p>" {
		t.Errorf("Bio = %q, want %q", sp.Bio, "<p>Hello</p>")
	}
	if len(sp.Specialties) != 2 || sp.Specialties[1] != "cut" {
		t.Errorf("Specialties = %v", sp.Specialties)
	}
	if len(stylists.rows) != 1 {
		t.Errorf("stored rows = %d, want 1", len(stylists.rows))
	}
}

func TestService_Create_DuplicateReturnsConflict(t *testing.T) {
	svc, _, _ := newTestService()
	createOwned(t, svc)

	_, err := svc.Create(context.Background(), owner, model.StylistInput{BusinessName: "Second"})
	assertAPIErrorCode(t, err, model.ErrCodeStylistExists)
}

func TestService_Create_ForOtherUserRequiresAdmin(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Create(context.Background(), other, model.StylistInput{UserID: ownerID, BusinessName: "Hijack"})
	assertAPIErrorCode(t, err, model.ErrCodeForbidden)

	sp, err := svc.Create(context.Background(), admin, model.StylistInput{UserID: ownerID, BusinessName: "Managed"})
	if err != nil {
		t.Fatalf("admin Create returned error: %v", err)
	}
	if sp.UserID != ownerID {
		t.Errorf("UserID = %q, want %q", sp.UserID, ownerID)
	}
}

func TestService_Create_Validation(t *testing.T) {
	svc, stylists, _ := newTestService()

	tests := []struct {
		name string
		in   model.StylistInput
	}{
		{"business_name必須", model.StylistInput{}},
		{"不正なメール", model.StylistInput{BusinessName: "S", ContactEmail: "not-an-email"}},
		{"不正なURL", model.StylistInput{BusinessName: "S", WebsiteURL: "javascript:alert(1)"}},
		{"内部アドレスのURL", model.StylistInput{BusinessName: "S", WebsiteURL: "http://127.0.0.1/admin"}},
		{"空の専門分野", model.StylistInput{BusinessName: "S", Specialties: []string{""}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), owner, tt.in)
			assertAPIErrorCode(t, err, model.ErrCodeValidation)
		})
	}
	if len(stylists.rows) != 0 {
		t.Errorf("invalid input should not be stored: %d rows", len(stylists.rows))
	}
}

func TestService_Update_OwnerAdminAndStranger(t *testing.T) {
	svc, _, _ := newTestService()
	sp := createOwned(t, svc)
	ctx := context.Background()

	if _, err := svc.Update(ctx, other, sp.ID, model.StylistInput{BusinessName: "Stolen"}); err == nil {
		t.Fatal("stranger update should fail")
	} else {
		assertAPIErrorCode(t, err, model.ErrCodeForbidden)
	}

	updated, err := svc.Update(ctx, owner, sp.ID, model.StylistInput{BusinessName: "Renamed", Location: "Shibuya"})
	if err != nil {
		t.Fatalf("owner Update returned error: %v", err)
	}
	if updated.BusinessName != "Renamed" || updated.Location != "Shibuya" {
		t.Errorf("unexpected update result: %+v", updated)
	}

	if _, err := svc.Update(ctx, admin, sp.ID, model.StylistInput{BusinessName: "By Admin"}); err != nil {
		t.Errorf("admin Update returned error: %v", err)
	}

	_, err = svc.Update(ctx, owner, uuid.NewString(), model.StylistInput{BusinessName: "X"})
	assertAPIErrorCode(t, err, model.ErrCodeStylistNotFound)
}

func TestService_GetAndDelete(t *testing.T) {
	svc, _, _ := newTestService()
	sp := createOwned(t, svc)
	ctx := context.Background()

	got, err := svc.GetByUser(ctx, ownerID)
	if err != nil || got.ID != sp.ID {
		t.Fatalf("GetByUser = %+v, %v", got, err)
	}

	_, err = svc.Get(ctx, "not-a-uuid")
	assertAPIErrorCode(t, err, model.ErrCodeValidation)

	if err := svc.Delete(ctx, sp.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	_, err = svc.Get(ctx, sp.ID)
	assertAPIErrorCode(t, err, model.ErrCodeStylistNotFound)

	assertAPIErrorCode(t, svc.Delete(ctx, sp.ID), model.ErrCodeStylistNotFound)
}

func TestService_Get_RepositoryErrorIsWrapped(t *testing.T) {
	svc, stylists, _ := newTestService()
	stylists.err = errors.New("connection reset")

	_, err := svc.Get(context.Background(), uuid.NewString())
	if err == nil || model.AsAPIError(err) != nil {
		t.Fatalf("expected plain wrapped error, got %v", err)
	}
	if !errors.Is(err, stylists.err) {
		t.Errorf("error should wrap repository error: %v", err)
	}
}

func TestService_ServiceLifecycle(t *testing.T) {
	svc, _, services := newTestService()
	sp := createOwned(t, svc)
	ctx := context.Background()

	created, err := svc.CreateService(ctx, owner, model.NewServiceInput{
		StylistID: sp.ID,
		ServiceInput: model.ServiceInput{
			Name:            "Cut <b>&</b> Style",
			Description:     "<p>Includes wash</p><iframe></iframe>",
			Price:           4500,
			DurationMinutes: 60,
		},
	})
	if err != nil {
		t.Fatalf("CreateService returned error: %v", err)
	}
	if created.Name != "Cut & Style" || created.Description != "<p>Includes wash</p>" {
		t.Errorf("service not sanitized: %+v", created)
	}

	list, err := svc.ListServices(ctx, sp.ID)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListServices = %v, %v", list, err)
	}

	_, err = svc.UpdateService(ctx, other, created.ID, model.ServiceInput{Name: "X", DurationMinutes: 30})
	assertAPIErrorCode(t, err, model.ErrCodeForbidden)

	updated, err := svc.UpdateService(ctx, owner, created.ID, model.ServiceInput{Name: "Cut", Price: 5000, DurationMinutes: 45})
	if err != nil {
		t.Fatalf("UpdateService returned error: %v", err)
	}
	if updated.Price != 5000 || services.rows[created.ID].DurationMinutes != 45 {
		t.Errorf("update not stored: %+v", services.rows[created.ID])
	}

	assertAPIErrorCode(t, svc.DeleteService(ctx, other, created.ID), model.ErrCodeForbidden)
	if err := svc.DeleteService(ctx, admin, created.ID); err != nil {
		t.Fatalf("admin DeleteService returned error: %v", err)
	}
	assertAPIErrorCode(t, svc.DeleteService(ctx, owner, created.ID), model.ErrCodeServiceNotFound)
}

func TestService_CreateService_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	sp := createOwned(t, svc)
	ctx := context.Background()

	tests := []struct {
		name string
		in   model.NewServiceInput
	}{
		{"stylist_id必須", model.NewServiceInput{ServiceInput: model.ServiceInput{Name: "Cut", DurationMinutes: 30}}},
		{"name必須", model.NewServiceInput{StylistID: sp.ID, ServiceInput: model.ServiceInput{DurationMinutes: 30}}},
		{"負の価格", model.NewServiceInput{StylistID: sp.ID, ServiceInput: model.ServiceInput{Name: "Cut", Price: -1, DurationMinutes: 30}}},
		{"所要時間が短すぎる", model.NewServiceInput{StylistID: sp.ID, ServiceInput: model.ServiceInput{Name: "Cut", DurationMinutes: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateService(ctx, owner, tt.in)
			assertAPIErrorCode(t, err, model.ErrCodeValidation)
		})
	}

	_, err := svc.CreateService(ctx, owner, model.NewServiceInput{
		StylistID:    uuid.NewString(),
		ServiceInput: model.ServiceInput{Name: "Cut", DurationMinutes: 30},
	})
	assertAPIErrorCode(t, err, model.ErrCodeStylistNotFound)
}
