// Пакет identity сопоставляет имя владельца зоны из PowerDNS-Admin
// с локальным аккаунтом.
//
// Основная стратегия — поиск аккаунта по точному имени (Mapper.Resolve).
// Запасная стратегия — CRC32-дайджест имени (Digest): он только группирует
// зоны одного владельца и хранится отдельно от внешнего ключа, потому что
// CRC32 не гарантирует уникальность.
package identity

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"sort"
	"strings"

	"github.com/svdleer/pdnsapi-sub000/internal/domain/model"
	"github.com/svdleer/pdnsapi-sub000/internal/repository"
)

// ErrUnknownOwner — аккаунта с таким именем локально нет.
var ErrUnknownOwner = errors.New("владелец не найден среди локальных аккаунтов")

// AccountLookup — поиск аккаунта по имени.
type AccountLookup interface {
	GetByName(ctx context.Context, name string) (*model.Account, error)
}

// Mapper разрешает имя владельца в id локального аккаунта.
type Mapper struct{}

// NewMapper создаёт Mapper.
func NewMapper() *Mapper {
	return &Mapper{}
}

// Resolve возвращает id аккаунта по имени владельца.
// Пустое имя — зона без владельца: (nil, nil).
// Аккаунта нет — ErrUnknownOwner.
func (m *Mapper) Resolve(ctx context.Context, accounts AccountLookup, owner string) (*int64, error) {
	owner = NormalizeOwner(owner)
	if owner == "" {
		return nil, nil
	}

	acc, err := accounts.GetByName(ctx, owner)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownOwner, owner)
		}
		return nil, fmt.Errorf("поиск владельца %q: %w", owner, err)
	}
	return &acc.ID, nil
}

// NormalizeOwner убирает пробелы по краям имени владельца.
func NormalizeOwner(owner string) string {
	return strings.TrimSpace(owner)
}

// Digest возвращает CRC32 (IEEE) имени владельца в виде 8 hex-символов.
// Для пустого имени возвращает пустую строку.
func Digest(owner string) string {
	owner = NormalizeOwner(owner)
	if owner == "" {
		return ""
	}
	return fmt.Sprintf("%08x", crc32.ChecksumIEEE([]byte(owner)))
}

// DigestPtr — Digest как указатель для nullable-колонки; nil для пустого имени.
func DigestPtr(owner string) *string {
	d := Digest(owner)
	if d == "" {
		return nil
	}
	return &d
}

// Collisions находит разных владельцев с одинаковым дайджестом.
// Результат упорядочен по дайджесту, владельцы внутри — по имени.
func Collisions(owners []string) []model.DigestCollision {
	byDigest := make(map[string]map[string]struct{})
	for _, o := range owners {
		o = NormalizeOwner(o)
		if o == "" {
			continue
		}
		d := Digest(o)
		if byDigest[d] == nil {
			byDigest[d] = make(map[string]struct{})
		}
		byDigest[d][o] = struct{}{}
	}

	var result []model.DigestCollision
	for d, set := range byDigest {
		if len(set) < 2 {
			continue
		}
		names := make([]string, 0, len(set))
		for n := range set {
			names = append(names, n)
		}
		sort.Strings(names)
		result = append(result, model.DigestCollision{Digest: d, Owners: names})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Digest < result[j].Digest })
	return result
}
