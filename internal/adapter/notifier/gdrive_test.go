package notifier

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/semmidev/sqlcourier/internal/config"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/afero"
	"google.golang.org/api/googleapi"
)

const testClientSecret = `{"installed":{"client_id":"id.apps.googleusercontent.com","client_secret":"secret","auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token","redirect_uris":["http://localhost"]}}`

func TestGDrive(t *testing.T) {
	Convey("Given Google API errors", t, func() {
		Convey("Rate limits and server errors are transient", func() {
			So(isTransientGoogleError(&googleapi.Error{Code: 429}), ShouldBeTrue)
			So(isTransientGoogleError(fmt.Errorf("upload: %w", &googleapi.Error{Code: 503})), ShouldBeTrue)
		})

		Convey("Client errors are permanent", func() {
			So(isTransientGoogleError(&googleapi.Error{Code: 403, Message: "timeout"}), ShouldBeFalse)
			So(googleStatus(&googleapi.Error{Code: 404}), ShouldEqual, 404)
		})

		Convey("Errors without a status fall back to message classification", func() {
			So(googleStatus(errors.New("boom")), ShouldEqual, 0)
			So(isTransientGoogleError(errors.New("net/http: request timed out")), ShouldBeTrue)
			So(isTransientGoogleError(errors.New("boom")), ShouldBeFalse)
		})
	})

	Convey("Given OAuth client credentials", t, func() {
		mem := afero.NewMemMapFs()
		So(afero.WriteFile(mem, "/secrets/client_secret.json", []byte(testClientSecret), 0600), ShouldBeNil)
		ctx := context.Background()

		Convey("OAuthConfig reads the client and scopes it to app files", func() {
			cfg, err := OAuthConfig(mem, "/secrets/client_secret.json")
			So(err, ShouldBeNil)
			So(cfg.ClientID, ShouldEqual, "id.apps.googleusercontent.com")
			So(cfg.Scopes, ShouldResemble, []string{"https://www.googleapis.com/auth/drive.file"})
		})

		Convey("OAuthConfig fails on a missing or malformed file", func() {
			_, err := OAuthConfig(mem, "/secrets/missing.json")
			So(err, ShouldNotBeNil)

			So(afero.WriteFile(mem, "/secrets/bad.json", []byte("{"), 0600), ShouldBeNil)
			_, err = OAuthConfig(mem, "/secrets/bad.json")
			So(err, ShouldNotBeNil)
		})

		Convey("A refresh token builds a Drive transport", func() {
			transport, err := NewGDrive(ctx, mem, &config.TransportConfig{
				Type: "gdrive",
				GDrive: config.GDriveConfig{
					ClientSecretFile: "/secrets/client_secret.json",
					RefreshToken:     "1//refresh",
					FolderID:         "folder",
				},
			})
			So(err, ShouldBeNil)
			So(transport.Name(), ShouldEqual, "gdrive")
			So(transport.folderID, ShouldEqual, "folder")
		})

		Convey("A refresh token with an unreadable secret fails", func() {
			_, err := NewGDrive(ctx, mem, &config.TransportConfig{
				Type: "gdrive",
				GDrive: config.GDriveConfig{
					ClientSecretFile: "/secrets/missing.json",
					RefreshToken:     "1//refresh",
					FolderID:         "folder",
				},
			})
			So(err, ShouldNotBeNil)
		})
	})
}
