// Package pagecam drives UI tests of a remote application through page
// objects.
//
// The application is reached through an Application handle: a queryable UI
// tree, a switch for waiting on the UI to settle, and a named-command tunnel.
// Tests describe each screen as a Page and chain steps on it:
//
//	func TestSettings(t *testing.T) {
//	    tc := pagecam.NewTestCase(t)
//	    app := teadriver.New(settings.NewModel())
//	    require.NoError(t, app.Start())
//	    defer app.Stop()
//
//	    pagecam.NewPage(tc, app, pagecam.WithUniquePartialText("Settings")).
//	        Await().
//	        TapCellWithLabel("Notifications").
//	        ConfirmEventIsTracked("settings", "tap", "notifications")
//	}
//
// UI changes and analytics arrive asynchronously, so checks that depend on
// them poll a Condition until it holds or a timeout passes. A failed step is
// reported at the line of the test that issued it. Structural checks of the
// tree run once.
//
// With report.enabled set in pagecam.yaml (or PAGECAM_REPORT_ENABLED=true),
// each test case writes an HTML run report of its failures and captures
// when it finishes, and a dashboard linking every report.
package pagecam
