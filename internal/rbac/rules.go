package rbac

// Default is the policy the route guards use. Candidates may only touch
// their own sessions; handlers enforce ownership with "session:view-all" as
// the override.
var Default = Policy{
	"candidate": {
		"test:view",
		"session:start",
		"session:answer",
		"session:complete",
		"session:view-own",
	},
	"author": {
		"test:*",
		"session:view-all",
	},
	"admin": {
		"*",
	},
}
