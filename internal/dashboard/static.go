// Static status page embedding. The page is deliberately minimal: the core
// treats rendering as an external concern, so this is just enough chrome to
// eyeball the API output in a browser.
package dashboard

import (
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/voltlab/battwatch/webui"
)

// RegisterStaticFiles mounts the embedded status page on the Gin engine.
// API routes registered before this take precedence; all unmatched routes
// fall back to index.html.
func RegisterStaticFiles(r *gin.Engine) {
	webRoot, err := fs.Sub(webui.FS, "web")
	if err != nil {
		panic("embed: web sub-fs failed: " + err.Error())
	}
	staticFS := http.FS(webRoot)

	r.NoRoute(func(c *gin.Context) {
		f, err := staticFS.Open("index.html")
		if err != nil {
			c.String(http.StatusNotFound, "status page not found")
			return
		}
		defer f.Close()
		stat, _ := f.Stat()
		c.DataFromReader(http.StatusOK, stat.Size(), "text/html; charset=utf-8", f, nil)
	})
}
