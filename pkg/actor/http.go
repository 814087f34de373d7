package actor

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Mount installs one gin route per registered HTTP handler name at
// /<actor-name>/<handler-name>, routing each request through
// CallHTTPHandler so it runs on the owning actor's own turn (spec §4.1,
// §6). Callers register handlers with RegisterHTTPHandler before Mount.
func (r *Runtime) Mount(router gin.IRoutes, addr Address, names ...string) error {
	actorName, err := addr.Name()
	if err != nil {
		return err
	}
	for _, name := range names {
		name := name
		router.GET("/"+actorName+"/"+name, func(c *gin.Context) {
			result, err := r.CallHTTPHandler(c.Request.Context(), addr, name, c.Request)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, result)
		})
	}
	return nil
}
