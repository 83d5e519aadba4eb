package tests

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"papertrail/docstore/auth"
	"papertrail/docstore/schema"
	"papertrail/docstore/services"
	"papertrail/docstore/storage"

	"github.com/go-chi/chi/v5"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testEnv struct {
	docstore services.DocStore
	api      chi.Router
	db       *gorm.DB
	storage  storage.Storage
}

const (
	adminUsername = "admin123"
	adminEmail    = "admin123@mail.com"
	adminPassword = "admin_password123"
)

func setupTestEnv(t *testing.T) *testEnv {
	return setupTestEnvWithDsn(t, "file::memory:")
}

// setupTestEnvWithDsn exists so tests that care about referential integrity
// can open the database with foreign key enforcement turned on.
func setupTestEnvWithDsn(t *testing.T, dsn string) *testEnv {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}

	err = db.AutoMigrate(schema.AllModels()...)
	if err != nil {
		t.Fatal(err)
	}

	storagePath := filepath.Join(t.TempDir(), "storage")
	err = os.MkdirAll(storagePath, 0777)
	if err != nil {
		t.Fatalf("error creating storage directory: %v", err)
	}

	store := storage.NewSharedDisk(storagePath)

	secret := []byte("290zcv02ai249")

	userAuth, err := auth.NewBasicIdentityProvider(
		db,
		auth.NewAuditLogger(new(bytes.Buffer)),
		auth.BasicProviderArgs{
			Secret:        secret,
			AdminUsername: adminUsername,
			AdminEmail:    adminEmail,
			AdminPassword: adminPassword,
		},
	)
	if err != nil {
		t.Fatal(err)
	}

	docstore := services.NewDocStore(db, store, userAuth, secret)

	return &testEnv{docstore: docstore, api: docstore.Routes(), db: db, storage: store}
}

func (t *testEnv) newClient() client {
	return client{api: t.api}
}

func (t *testEnv) newUser(username string) (client, error) {
	c := t.newClient()
	login, err := c.signup(username, username+"@mail.com", username+"_password")
	if err != nil {
		return client{}, err
	}

	err = c.login(login)
	if err != nil {
		return client{}, err
	}

	return c, nil
}

func (t *testEnv) adminClient() (client, error) {
	c := t.newClient()
	err := c.login(loginInfo{Email: adminEmail, Password: adminPassword})
	return c, err
}

// workspace is the common fixture for document tests: an organization with
// one team, one folder, two statuses, a scenario, and a tag.
type workspace struct {
	teamId     string
	folderId   string
	draftId    string
	reviewedId string
	scenarioId string
	tagId      string
}

func setupWorkspace(t *testing.T, admin *client, member *client) workspace {
	orgId, err := admin.createOrganization("acme")
	if err != nil {
		t.Fatal(err)
	}

	teamId, err := admin.createTeam("research", orgId)
	if err != nil {
		t.Fatal(err)
	}

	if member != nil {
		if err := admin.addUserToTeam(teamId, member.userId); err != nil {
			t.Fatal(err)
		}
	}

	folderId, err := admin.createFolder("reports", teamId, nil)
	if err != nil {
		t.Fatal(err)
	}

	draftId, err := admin.createStatus("draft")
	if err != nil {
		t.Fatal(err)
	}
	reviewedId, err := admin.createStatus("reviewed")
	if err != nil {
		t.Fatal(err)
	}

	scenarioId, err := admin.createScenario("audit-prep", "documents gathered for audit preparation")
	if err != nil {
		t.Fatal(err)
	}

	tagId, err := admin.createTag("urgent", "red")
	if err != nil {
		t.Fatal(err)
	}

	return workspace{
		teamId:     teamId,
		folderId:   folderId,
		draftId:    draftId,
		reviewedId: reviewedId,
		scenarioId: scenarioId,
		tagId:      tagId,
	}
}
