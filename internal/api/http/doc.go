/*
Package http exposes the context manager over REST.

Routes (all JSON):

	GET    /health
	GET    /contexts                      list live contexts
	POST   /contexts                      create from an option bag
	GET    /contexts/:id                  describe
	DELETE /contexts/:id                  destroy
	POST   /contexts/:id/eval             {"code", "file"}
	GET    /contexts/:id/get?path=        value at path
	GET    /contexts/:id/exists?path=
	GET    /contexts/:id/typeof?path=
	GET    /contexts/:id/typeflags?path=
	POST   /contexts/:id/set              {"path", "value"}
	POST   /contexts/:id/instanceof       {"object", "constructor"}
	POST   /contexts/:id/dispatch         {"name"}
	POST   /contexts/:id/gc
	GET    /contexts/:id/stats            DELETE resets and returns the old buffer
	GET    /contexts/:id/messages         DELETE resets and returns the old buffer

Failures answer {"success": false, "error": "..."} with a status derived
from the error class; script failures also carry their position.
*/
package http
