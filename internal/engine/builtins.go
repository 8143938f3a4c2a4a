package engine

// Source is a named piece of script code compiled once per engine.
type Source struct {
	Name string
	Code string
}

// Builtins are the inlined helpers installed into every context's global
// object by the native registrar.
var Builtins = []Source{
	{
		Name: "bridge_stringify.js",
		Code: `(function (g) {
	var ns = g._bridge || (g._bridge = {});
	ns.stringify = function (value, indent) {
		var seen = new WeakSet();
		return JSON.stringify(value, function (key, v) {
			if (typeof v === "object" && v !== null) {
				if (seen.has(v)) {
					return "[Circular]";
				}
				seen.add(v);
			}
			return v;
		}, indent);
	};
})(this);`,
	},
	{
		Name: "structured_clone.js",
		Code: `(function (g) {
	if (typeof g.structuredClone === "function") {
		return;
	}
	g.structuredClone = function (value) {
		if (value === undefined) {
			return undefined;
		}
		return JSON.parse(JSON.stringify(value));
	};
})(this);`,
	},
}
