package student

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"

	"github.com/mzalendo/shule/core"
	"github.com/mzalendo/shule/core/user"
)

var ErrNotFound = errors.New("student not found")

type (
	Repository interface {
		CreateStudent(ctx context.Context, st Student) (Student, error)
		QueryAllStudents(ctx context.Context) ([]Student, error)
		GetStudentByID(ctx context.Context, id string) (Student, error)
		QueryStudentsByParentID(ctx context.Context, parentID string) ([]Student, error)
	}

	Service struct {
		repo    Repository
		usrSvc  *user.Service
		mailSvc core.EmailService
	}
)

func NewService(repo Repository, usrSvc *user.Service, mailSvc core.EmailService) *Service {
	return &Service{repo: repo, usrSvc: usrSvc, mailSvc: mailSvc}
}

// Create records a new student and links it to the parent identity matching
// ns.ParentPhone, provisioning a PARENT identity when none exists yet.
// Generated credentials are returned exactly once, on provisioning, for
// out-of-band disclosure, and mailed to ns.ParentEmail when one was given;
// repeated creations for the same phone reuse the one existing parent
// (siblings fan out to a single identity).
func (svc *Service) Create(ctx context.Context, ns NewStudent) (Student, *user.GeneratedCredentials, error) {
	parentName := fmt.Sprintf("Parent of %s", ns.Name)
	parent, creds, err := svc.usrSvc.FindOrProvisionParent(ctx, parentName, ns.ParentPhone, ns.ParentEmail)
	if err != nil {
		return Student{}, nil, err
	}

	now := time.Now().UTC()
	st := Student{
		ID:          uuid.New().String(),
		Name:        ns.Name,
		ClassName:   ns.ClassName,
		ParentPhone: ns.ParentPhone,
		ParentID:    parent.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	st, err = svc.repo.CreateStudent(ctx, st)
	if err != nil {
		return Student{}, nil, err
	}

	if creds != nil && parent.Email != "" {
		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:      []mail.Address{{Name: parent.Name, Address: parent.Email}},
			Subject: "Your parent account",
			Body: fmt.Sprintf("An account has been created for you. Login id: %s, password: %s",
				creds.LoginID, creds.Password),
		})
	}
	return st, creds, nil
}

// ChildrenOf returns every student linked to the given parent identity,
// independent of creation order.
func (svc *Service) ChildrenOf(ctx context.Context, parentID string) ([]Student, error) {
	return svc.repo.QueryStudentsByParentID(ctx, parentID)
}

func (svc *Service) QueryAll(ctx context.Context) ([]Student, error) {
	return svc.repo.QueryAllStudents(ctx)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudentByID(ctx, id)
}
