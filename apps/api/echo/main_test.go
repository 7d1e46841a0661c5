package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"os"
	"reflect"
	"regexp"
	"testing"
	"time"

	"github.com/mzalendo/shule/core"
	"github.com/mzalendo/shule/core/record"
	"github.com/mzalendo/shule/core/student"
	"github.com/mzalendo/shule/core/user"
	emailsvc "github.com/mzalendo/shule/services/email"
	logsvc "github.com/mzalendo/shule/services/logger"
	inmemdb "github.com/mzalendo/shule/storage/database/inmem"
)

var (
	errMissingToken = httpErr{Error: "TokenInvalid"}
	otpRegex        = regexp.MustCompile(`[0-9]{6}`)
)

type testApp struct {
	app        Server
	conf       *core.Config
	usrSvc     *user.Service
	studentSvc *student.Service
	recordSvc  *record.Service
	mailSvc    emailMock
}

type emailMock interface {
	core.EmailService
	SentMessages() []core.EmailMessage
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	conf := &core.Config{
		Env:              "TEST",
		TestMode:         true,
		AppName:          "Shule",
		SecretKey:        []byte("secret"),
		FrontendBaseURL:  "http://localhost:3000",
		DefaultFromEmail: mail.Address{Name: "Shule", Address: "noreply@localhost"},
	}
	conf.Server.JWTExpirationDelta = 7 * 24 * time.Hour
	conf.Server.JWTRefreshExpirationDelta = 4 * time.Hour
	conf.Auth.OTPLength = 6
	conf.Auth.OTPMaxAttempts = 5
	conf.Auth.OTPExpirationDelta = 10 * time.Minute
	conf.Auth.PasswordResetTimeoutDelta = 3 * 24 * time.Hour
	conf.Auth.RoleSecretCodes = map[string]string{
		user.RolePrincipal:     "principal-code",
		user.RoleStateAdmin:    "state-code",
		user.RoleDistrictAdmin: "district-code",
	}

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() error = %v", err)
	}
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc := user.NewService(
		inmemdb.NewIdentityRepository(db),
		mailSvc,
		user.NewSecretCodeRegistry(conf),
		user.NewChallengeStore(conf),
		conf,
	)
	studentSvc := student.NewService(inmemdb.NewStudentRepository(db), usrSvc, mailSvc)
	recordSvc := record.NewService(inmemdb.NewRecordRepository(db))

	app := NewServer(
		"",  /* addr */
		nil, /* shutdown */
		&Deps{
			Conf:       conf,
			Logger:     logsvc.NewStdLogger(log.New(os.Stderr, "", log.LstdFlags)),
			UserSvc:    usrSvc,
			StudentSvc: studentSvc,
			RecordSvc:  recordSvc,
		},
	)

	return &testApp{
		app:        app,
		conf:       conf,
		usrSvc:     usrSvc,
		studentSvc: studentSvc,
		recordSvc:  recordSvc,
		mailSvc:    mailSvc,
	}
}

// createIdentity seeds an identity with the given role, bypassing the
// registration gate.
func (ta *testApp) createIdentity(t *testing.T, name, email, role string) user.Identity {
	t.Helper()
	usr, err := ta.usrSvc.Register(context.Background(), user.NewIdentity{
		Name: name, Email: email, Password: "Kawasaki!400",
	})
	if err != nil {
		t.Fatalf("createIdentity(): %v", err)
	}
	if role != "" && role != user.RoleStaff {
		usr, err = ta.usrSvc.Update(context.Background(), usr.ID, user.UpdateIdentity{Role: role})
		if err != nil {
			t.Fatalf("createIdentity(): %v", err)
		}
	}
	return usr
}

// lastOTP extracts the code from the most recent delivered message.
func (ta *testApp) lastOTP(t *testing.T) string {
	t.Helper()
	sent := ta.mailSvc.SentMessages()
	if len(sent) == 0 {
		t.Fatal("lastOTP(): no messages sent")
	}
	code := otpRegex.FindString(sent[len(sent)-1].Body)
	if code == "" {
		t.Fatalf("lastOTP(): no code in %q", sent[len(sent)-1].Body)
	}
	return code
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.Identity) string {
	claims := GetIdentityClaims(usr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj(): %v", err)
	}
	return data
}

func marshallList(t *testing.T, objs ...interface{}) []byte {
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marshallList(): %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
