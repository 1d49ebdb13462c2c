package app

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/semmidev/sqlcourier/internal/infrastructure/logger"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/afero"
)

const clientSecret = `{"installed":{"client_id":"id.apps.googleusercontent.com","client_secret":"secret","auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token","redirect_uris":["http://localhost:8085/auth/google/callback"]}}`

func TestDriveAuth(t *testing.T) {
	Convey("Given a client secret file", t, func() {
		mem := afero.NewMemMapFs()
		So(afero.WriteFile(mem, "/secrets/client_secret.json", []byte(clientSecret), 0600), ShouldBeNil)

		Convey("Construction validates its inputs", func() {
			_, err := NewDriveAuth(nil, mem, "/secrets/client_secret.json")
			So(err, ShouldNotBeNil)

			_, err = NewDriveAuth(logger.Nop(), mem, "")
			So(err, ShouldNotBeNil)

			_, err = NewDriveAuth(logger.Nop(), mem, "/secrets/missing.json")
			So(err, ShouldNotBeNil)
		})

		Convey("The consent endpoint redirects to Google with offline access", func() {
			auth, err := NewDriveAuth(logger.Nop(), mem, "/secrets/client_secret.json")
			So(err, ShouldBeNil)

			rec := httptest.NewRecorder()
			auth.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/google/drive", nil))

			So(rec.Code, ShouldEqual, http.StatusTemporaryRedirect)
			location, err := url.Parse(rec.Header().Get("Location"))
			So(err, ShouldBeNil)
			So(location.Host, ShouldEqual, "accounts.google.com")
			So(location.Query().Get("access_type"), ShouldEqual, "offline")
			So(location.Query().Get("state"), ShouldEqual, auth.state)
		})

		Convey("The callback rejects a forged state", func() {
			auth, err := NewDriveAuth(logger.Nop(), mem, "/secrets/client_secret.json")
			So(err, ShouldBeNil)

			rec := httptest.NewRecorder()
			auth.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=other&code=x", nil))

			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("The callback requires a code", func() {
			auth, err := NewDriveAuth(logger.Nop(), mem, "/secrets/client_secret.json")
			So(err, ShouldBeNil)

			rec := httptest.NewRecorder()
			auth.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/google/callback?state="+auth.state, nil))

			So(rec.Code, ShouldEqual, http.StatusBadRequest)
			So(rec.Body.String(), ShouldContainSubstring, "missing code")
		})
	})
}
