package inmemdb

import (
	"context"
	"time"

	"github.com/mzalendo/shule/core/user"
)

type identityRepository struct {
	db *identityTable
}

func NewIdentityRepository(db *DB) user.Repository {
	return &identityRepository{db: db.identity}
}

func (repo *identityRepository) query() []user.Identity {
	users := make([]user.Identity, 0, len(repo.db.table))
	for _, usr := range repo.db.table {
		users = append(users, *usr)
	}
	return users
}

func (repo *identityRepository) CheckUniqueness(_ context.Context, loginID, email string, excluded ...user.Identity) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, usr := range repo.query() {
		if isExcluded(usr, excluded) {
			continue
		}
		if loginID != "" && usr.LoginID == loginID {
			return user.ErrLoginIDExists
		}
		if email != "" && usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *identityRepository) CreateIdentity(_ context.Context, usr user.Identity) (user.Identity, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.table[usr.ID] = &usr
	return usr, nil
}

func (repo *identityRepository) QueryAllIdentities(_ context.Context) ([]user.Identity, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.query(), nil
}

func (repo *identityRepository) GetIdentityByID(_ context.Context, id string) (user.Identity, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if usr, ok := repo.db.table[id]; ok {
		return *usr, nil
	}
	return user.Identity{}, user.ErrNotFound
}

func (repo *identityRepository) GetIdentityByEmail(_ context.Context, email string) (user.Identity, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, usr := range repo.query() {
		if usr.Email == email {
			return usr, nil
		}
	}
	return user.Identity{}, user.ErrNotFound
}

func (repo *identityRepository) GetIdentityByLoginIDOrEmail(_ context.Context, identifier string) (user.Identity, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, usr := range repo.query() {
		if (usr.LoginID == identifier) || (usr.Email != "" && usr.Email == identifier) {
			return usr, nil
		}
	}
	return user.Identity{}, user.ErrNotFound
}

// FindOrCreateParent runs find-then-create under a single write lock so two
// concurrent student creations for one phone cannot both provision a parent.
// A deactivated match is reactivated; the phone remains the identity key.
func (repo *identityRepository) FindOrCreateParent(_ context.Context, phone string, usr user.Identity) (user.Identity, bool, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, existing := range repo.db.table {
		if existing.Role == user.RoleParent && existing.Phone == phone {
			existing.IsActive = true
			return *existing, false, nil
		}
	}
	repo.db.table[usr.ID] = &usr
	return usr, true, nil
}

func (repo *identityRepository) UpdateIdentity(_ context.Context, usr user.Identity, isActive *bool) (user.Identity, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	// only save set fields
	origUsr, ok := repo.db.table[usr.ID]
	if !ok {
		return user.Identity{}, user.ErrNotFound
	}
	if usr.Name != "" {
		origUsr.Name = usr.Name
	}
	if usr.LoginID != "" {
		origUsr.LoginID = usr.LoginID
	}
	if usr.Email != "" {
		origUsr.Email = usr.Email
	}
	if usr.Phone != "" {
		origUsr.Phone = usr.Phone
	}
	if usr.Role != "" {
		origUsr.Role = usr.Role
	}
	if usr.PasswordHash != nil {
		origUsr.PasswordHash = usr.PasswordHash
	}
	if isActive != nil {
		origUsr.IsActive = *isActive
	}
	origUsr.UpdatedAt = usr.UpdatedAt

	repo.db.table[usr.ID] = origUsr
	return *origUsr, nil
}

func (repo *identityRepository) SetLastLogin(_ context.Context, usr user.Identity) (user.Identity, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	origUsr, ok := repo.db.table[usr.ID]
	if !ok {
		return user.Identity{}, user.ErrNotFound
	}
	origUsr.LastLogin = time.Now().UTC()
	return *origUsr, nil
}

func isExcluded(usr user.Identity, excluded []user.Identity) bool {
	for _, ex := range excluded {
		if ex.ID == usr.ID {
			return true
		}
	}
	return false
}
