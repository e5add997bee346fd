// Пакет memstore — реализация repository.Store в памяти для тестов сервисов.
//
// Повторяет ограничения схемы PostgreSQL: уникальность имён, внешние ключи,
// каскадное удаление связей, обнуление владельца домена при удалении аккаунта,
// каноническую форму имени домена. Транзакции верхнего уровня выполняются
// последовательно; вложенный RunInTx работает как точка сохранения.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/svdleer/pdnsapi-sub000/internal/domain/model"
	"github.com/svdleer/pdnsapi-sub000/internal/repository"
)

// FailFunc вызывается перед каждой записью; ненулевая ошибка прерывает операцию.
// op — "account.create", "domain.update" и т.п.; key — естественный ключ записи.
type FailFunc func(op, key string) error

type pair struct{ domainID, accountID int64 }

type data struct {
	accounts      map[int64]*model.Account
	domains       map[int64]*model.Domain
	assignments   map[pair]*model.Assignment
	syncState     model.SyncState
	nextAccountID int64
	nextDomainID  int64
}

func (d *data) clone() *data {
	c := &data{
		accounts:      make(map[int64]*model.Account, len(d.accounts)),
		domains:       make(map[int64]*model.Domain, len(d.domains)),
		assignments:   make(map[pair]*model.Assignment, len(d.assignments)),
		syncState:     d.syncState,
		nextAccountID: d.nextAccountID,
		nextDomainID:  d.nextDomainID,
	}
	for k, v := range d.accounts {
		c.accounts[k] = copyAccount(v)
	}
	for k, v := range d.domains {
		c.domains[k] = copyDomain(v)
	}
	for k, v := range d.assignments {
		c.assignments[k] = copyAssignment(v)
	}
	return c
}

type root struct {
	txMu sync.Mutex
	mu   sync.Mutex
	d    *data
	fail FailFunc
}

// Store — хранилище в памяти.
type Store struct {
	r    *root
	inTx bool
}

var _ repository.Store = (*Store)(nil)

// New создаёт пустое хранилище.
func New() *Store {
	now := time.Now()
	return &Store{r: &root{d: &data{
		accounts:      make(map[int64]*model.Account),
		domains:       make(map[int64]*model.Domain),
		assignments:   make(map[pair]*model.Assignment),
		syncState:     model.SyncState{ID: 1, CreatedAt: now, UpdatedAt: now},
		nextAccountID: 1,
		nextDomainID:  1,
	}}}
}

// SetFailFunc задаёт функцию подстановки ошибок записи (nil — отключить).
func (s *Store) SetFailFunc(f FailFunc) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	s.r.fail = f
}

func (s *Store) Accounts() repository.AccountRepository       { return &accounts{s} }
func (s *Store) Domains() repository.DomainRepository         { return &domains{s} }
func (s *Store) Assignments() repository.AssignmentRepository { return &assignments{s} }
func (s *Store) SyncState() repository.SyncStateRepository    { return &syncState{s} }

// RunInTx выполняет fn атомарно: при ошибке состояние возвращается к снимку.
func (s *Store) RunInTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.inTx {
		s.r.txMu.Lock()
		defer s.r.txMu.Unlock()
	}

	s.r.mu.Lock()
	snapshot := s.r.d.clone()
	s.r.mu.Unlock()

	if err := fn(&Store{r: s.r, inTx: true}); err != nil {
		s.r.mu.Lock()
		s.r.d = snapshot
		s.r.mu.Unlock()
		return err
	}
	return nil
}

// with выполняет op под блокировками. Вне транзакции операция также
// ждёт завершения текущей транзакции верхнего уровня.
func (s *Store) with(op func(d *data) error) error {
	if !s.inTx {
		s.r.txMu.Lock()
		defer s.r.txMu.Unlock()
	}
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	return op(s.r.d)
}

func (s *Store) checkFail(op, key string) error {
	if s.r.fail == nil {
		return nil
	}
	return s.r.fail(op, key)
}

// --- Копирование ---

func copyInt64(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyAccount(a *model.Account) *model.Account {
	c := *a
	c.IPAddresses = append([]string{}, a.IPAddresses...)
	c.RemoteAccountID = copyInt64(a.RemoteAccountID)
	return &c
}

func copyDomain(d *model.Domain) *model.Domain {
	c := *d
	c.RemoteZoneID = copyInt64(d.RemoteZoneID)
	c.OwnerDigest = copyString(d.OwnerDigest)
	c.AccountID = copyInt64(d.AccountID)
	return &c
}

func copyAssignment(a *model.Assignment) *model.Assignment {
	c := *a
	c.AssignedBy = copyString(a.AssignedBy)
	return &c
}

// --- Accounts ---

type accounts struct{ s *Store }

func (r *accounts) Create(_ context.Context, a *model.Account) error {
	return r.s.with(func(d *data) error {
		if err := r.s.checkFail("account.create", a.Name); err != nil {
			return err
		}
		if a.Name == "" {
			return fmt.Errorf("check violation: пустое имя аккаунта")
		}
		for _, existing := range d.accounts {
			if existing.Name == a.Name {
				return fmt.Errorf("%w: аккаунт %q уже существует", repository.ErrConflict, a.Name)
			}
		}
		now := time.Now()
		a.ID = d.nextAccountID
		d.nextAccountID++
		a.CreatedAt, a.UpdatedAt = now, now
		if a.IPAddresses == nil {
			a.IPAddresses = []string{}
		}
		d.accounts[a.ID] = copyAccount(a)
		return nil
	})
}

func (r *accounts) GetByID(_ context.Context, id int64) (*model.Account, error) {
	var result *model.Account
	err := r.s.with(func(d *data) error {
		a, ok := d.accounts[id]
		if !ok {
			return repository.ErrNotFound
		}
		result = copyAccount(a)
		return nil
	})
	return result, err
}

func (r *accounts) GetByName(_ context.Context, name string) (*model.Account, error) {
	var result *model.Account
	err := r.s.with(func(d *data) error {
		for _, a := range d.accounts {
			if a.Name == name {
				result = copyAccount(a)
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return result, err
}

func (r *accounts) List(_ context.Context) ([]*model.Account, error) {
	var result []*model.Account
	err := r.s.with(func(d *data) error {
		for _, a := range d.accounts {
			result = append(result, copyAccount(a))
		}
		return nil
	})
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, err
}

func (r *accounts) Update(_ context.Context, a *model.Account) error {
	return r.s.with(func(d *data) error {
		existing, ok := d.accounts[a.ID]
		if !ok {
			return repository.ErrNotFound
		}
		if err := r.s.checkFail("account.update", existing.Name); err != nil {
			return err
		}
		updated := copyAccount(a)
		updated.Name = existing.Name
		updated.CreatedAt = existing.CreatedAt
		updated.UpdatedAt = time.Now()
		d.accounts[a.ID] = updated
		a.UpdatedAt = updated.UpdatedAt
		return nil
	})
}

func (r *accounts) Delete(_ context.Context, id int64) error {
	return r.s.with(func(d *data) error {
		existing, ok := d.accounts[id]
		if !ok {
			return repository.ErrNotFound
		}
		if err := r.s.checkFail("account.delete", existing.Name); err != nil {
			return err
		}
		delete(d.accounts, id)
		for k := range d.assignments {
			if k.accountID == id {
				delete(d.assignments, k)
			}
		}
		for _, dom := range d.domains {
			if dom.AccountID != nil && *dom.AccountID == id {
				dom.AccountID = nil
			}
		}
		return nil
	})
}

func (r *accounts) Count(_ context.Context) (int, error) {
	var n int
	err := r.s.with(func(d *data) error {
		n = len(d.accounts)
		return nil
	})
	return n, err
}

// --- Domains ---

type domains struct{ s *Store }

func checkCanonical(name string) error {
	if len(name) < 2 || !strings.HasSuffix(name, ".") || name != strings.ToLower(name) {
		return fmt.Errorf("check violation: имя домена %q не в канонической форме", name)
	}
	return nil
}

func (r *domains) Create(_ context.Context, dom *model.Domain) error {
	return r.s.with(func(d *data) error {
		if err := r.s.checkFail("domain.create", dom.Name); err != nil {
			return err
		}
		if err := checkCanonical(dom.Name); err != nil {
			return err
		}
		for _, existing := range d.domains {
			if existing.Name == dom.Name {
				return fmt.Errorf("%w: домен %s уже существует", repository.ErrConflict, dom.Name)
			}
		}
		if dom.AccountID != nil {
			if _, ok := d.accounts[*dom.AccountID]; !ok {
				return fmt.Errorf("%w: аккаунт владельца домена %s", repository.ErrInvalidReference, dom.Name)
			}
		}
		if dom.OwnerSource == "" {
			dom.OwnerSource = model.OwnerSourceRemote
		}
		now := time.Now()
		dom.ID = d.nextDomainID
		d.nextDomainID++
		dom.CreatedAt, dom.UpdatedAt = now, now
		d.domains[dom.ID] = copyDomain(dom)
		return nil
	})
}

func (r *domains) GetByID(_ context.Context, id int64) (*model.Domain, error) {
	var result *model.Domain
	err := r.s.with(func(d *data) error {
		dom, ok := d.domains[id]
		if !ok {
			return repository.ErrNotFound
		}
		result = copyDomain(dom)
		return nil
	})
	return result, err
}

func (r *domains) GetByName(_ context.Context, name string) (*model.Domain, error) {
	var result *model.Domain
	err := r.s.with(func(d *data) error {
		for _, dom := range d.domains {
			if dom.Name == name {
				result = copyDomain(dom)
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return result, err
}

func (r *domains) List(_ context.Context, filter repository.DomainFilter) ([]*model.Domain, error) {
	var result []*model.Domain
	err := r.s.with(func(d *data) error {
		for _, dom := range d.domains {
			if filter.AccountID != nil && (dom.AccountID == nil || *dom.AccountID != *filter.AccountID) {
				continue
			}
			if filter.OwnerDigest != nil && (dom.OwnerDigest == nil || *dom.OwnerDigest != *filter.OwnerDigest) {
				continue
			}
			result = append(result, copyDomain(dom))
		}
		return nil
	})
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, err
}

func (r *domains) Update(_ context.Context, dom *model.Domain) error {
	return r.s.with(func(d *data) error {
		existing, ok := d.domains[dom.ID]
		if !ok {
			return repository.ErrNotFound
		}
		if err := r.s.checkFail("domain.update", existing.Name); err != nil {
			return err
		}
		if dom.AccountID != nil {
			if _, ok := d.accounts[*dom.AccountID]; !ok {
				return fmt.Errorf("%w: аккаунт владельца домена %s", repository.ErrInvalidReference, existing.Name)
			}
		}
		updated := copyDomain(dom)
		updated.Name = existing.Name
		updated.CreatedAt = existing.CreatedAt
		updated.UpdatedAt = time.Now()
		if updated.OwnerSource == "" {
			updated.OwnerSource = model.OwnerSourceRemote
		}
		d.domains[dom.ID] = updated
		dom.UpdatedAt = updated.UpdatedAt
		dom.OwnerSource = updated.OwnerSource
		return nil
	})
}

func (r *domains) Delete(_ context.Context, id int64) error {
	return r.s.with(func(d *data) error {
		existing, ok := d.domains[id]
		if !ok {
			return repository.ErrNotFound
		}
		if err := r.s.checkFail("domain.delete", existing.Name); err != nil {
			return err
		}
		delete(d.domains, id)
		for k := range d.assignments {
			if k.domainID == id {
				delete(d.assignments, k)
			}
		}
		return nil
	})
}

func (r *domains) Count(_ context.Context) (int, error) {
	var n int
	err := r.s.with(func(d *data) error {
		n = len(d.domains)
		return nil
	})
	return n, err
}

// --- Assignments ---

type assignments struct{ s *Store }

func (r *assignments) Create(_ context.Context, a *model.Assignment) error {
	return r.s.with(func(d *data) error {
		if err := r.s.checkFail("assignment.create", fmt.Sprintf("%d/%d", a.DomainID, a.AccountID)); err != nil {
			return err
		}
		k := pair{a.DomainID, a.AccountID}
		if _, ok := d.assignments[k]; ok {
			return fmt.Errorf("%w: домен %d уже связан с аккаунтом %d", repository.ErrConflict, a.DomainID, a.AccountID)
		}
		_, domainOK := d.domains[a.DomainID]
		_, accountOK := d.accounts[a.AccountID]
		if !domainOK || !accountOK {
			return fmt.Errorf("%w: домен %d или аккаунт %d", repository.ErrInvalidReference, a.DomainID, a.AccountID)
		}
		a.AssignedAt = time.Now()
		d.assignments[k] = copyAssignment(a)
		return nil
	})
}

func (r *assignments) Delete(_ context.Context, domainID, accountID int64) error {
	return r.s.with(func(d *data) error {
		k := pair{domainID, accountID}
		if _, ok := d.assignments[k]; !ok {
			return repository.ErrNotFound
		}
		delete(d.assignments, k)
		return nil
	})
}

func view(d *data, a *model.Assignment) *model.AssignmentView {
	dom := d.domains[a.DomainID]
	acc := d.accounts[a.AccountID]
	return &model.AssignmentView{
		Assignment:   *copyAssignment(a),
		DomainName:   dom.Name,
		RemoteZoneID: copyInt64(dom.RemoteZoneID),
		AccountName:  acc.Name,
		AccountMail:  acc.Mail,
	}
}

func (r *assignments) Get(_ context.Context, domainID, accountID int64) (*model.AssignmentView, error) {
	var result *model.AssignmentView
	err := r.s.with(func(d *data) error {
		a, ok := d.assignments[pair{domainID, accountID}]
		if !ok {
			return repository.ErrNotFound
		}
		result = view(d, a)
		return nil
	})
	return result, err
}

func (r *assignments) List(_ context.Context, filter repository.AssignmentFilter) ([]*model.AssignmentView, error) {
	var result []*model.AssignmentView
	err := r.s.with(func(d *data) error {
		for k, a := range d.assignments {
			if filter.DomainID != nil && k.domainID != *filter.DomainID {
				continue
			}
			if filter.AccountID != nil && k.accountID != *filter.AccountID {
				continue
			}
			result = append(result, view(d, a))
		}
		return nil
	})
	sort.Slice(result, func(i, j int) bool {
		if result[i].DomainName != result[j].DomainName {
			return result[i].DomainName < result[j].DomainName
		}
		return result[i].AccountName < result[j].AccountName
	})
	return result, err
}

func (r *assignments) CountByDomain(_ context.Context, domainID int64) (int, error) {
	var n int
	err := r.s.with(func(d *data) error {
		for k := range d.assignments {
			if k.domainID == domainID {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *assignments) CountByAccount(_ context.Context, accountID int64) (int, error) {
	var n int
	err := r.s.with(func(d *data) error {
		for k := range d.assignments {
			if k.accountID == accountID {
				n++
			}
		}
		return nil
	})
	return n, err
}

// --- SyncState ---

type syncState struct{ s *Store }

func (r *syncState) Get(_ context.Context) (*model.SyncState, error) {
	var result model.SyncState
	err := r.s.with(func(d *data) error {
		result = d.syncState
		return nil
	})
	return &result, err
}

func (r *syncState) UpdateAccountSyncAt(_ context.Context, t time.Time) error {
	return r.s.with(func(d *data) error {
		d.syncState.LastAccountSyncAt = &t
		d.syncState.UpdatedAt = time.Now()
		return nil
	})
}

func (r *syncState) UpdateDomainSyncAt(_ context.Context, t time.Time) error {
	return r.s.with(func(d *data) error {
		d.syncState.LastDomainSyncAt = &t
		d.syncState.UpdatedAt = time.Now()
		return nil
	})
}
