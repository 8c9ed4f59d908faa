package opcode

// names is the surface spelling of every kind, used by the parser to
// resolve a list head and by the unparser to print one. Leaf kinds that
// print as literals (Number, String, Symbol) still get a spelling so
// diagnostics can name them.
var names = [kindCount]string{
	Null:        "null",
	True:        "true",
	False:       "false",
	Number:      "number",
	String:      "string",
	Symbol:      "symbol",
	List:        "list",
	Associative: "assoc",

	If:            "if",
	Sequence:      "seq",
	Parallel:      "parallel",
	Lambda:        "lambda",
	Conclude:      "conclude",
	Return:        "return",
	Call:          "call",
	CallSandboxed: "call_sandboxed",
	While:         "while",

	Let:      "let",
	Declare:  "declare",
	Assign:   "assign",
	Accum:    "accum",
	Retrieve: "retrieve",
	Get:      "get",
	Set:      "set",
	Replace:  "replace",

	Target:         "target",
	CurrentIndex:   "current_index",
	CurrentValue:   "current_value",
	PreviousResult: "previous_result",
	OpcodeStackOp:  "opcode_stack",
	StackOp:        "stack",
	Args:           "args",

	Rand:        "rand",
	GetRandSeed: "get_rand_seed",
	SetRandSeed: "set_rand_seed",

	Add:      "+",
	Subtract: "-",
	Multiply: "*",
	Divide:   "/",
	Modulus:  "mod",
	Exponent: "pow",
	Negate:   "negate",
	Floor:    "floor",
	Ceiling:  "ceil",
	Round:    "round",
	Sine:     "sin",
	Cosine:   "cos",
	Log:      "log",
	Sqrt:     "sqrt",

	ListSize:    "size",
	ListAppend:  "append",
	ListGet:     "nth",
	ListSet:     "set_nth",
	ListIndexOf: "index_of",
	ListSlice:   "slice",
	Sort:        "sort",
	Reverse:     "reverse",
	Map:         "map",
	Filter:      "filter",
	Reduce:      "reduce",
	Apply:       "apply",
	Weave:       "weave",
	Rewrite:     "rewrite",

	AssocSize:   "assoc_size",
	AssocGet:    "assoc_get",
	AssocSet:    "assoc_set",
	AssocRemove: "assoc_remove",
	AssocKeys:   "keys",
	AssocValues: "values",
	AssocMerge:  "assoc_merge",
	ZipLabels:   "zip_labels",
	Mix:         "mix",

	And: "and",
	Or:  "or",
	Not: "not",
	Xor: "xor",

	Equal:          "=",
	NotEqual:       "!=",
	LessThan:       "<",
	LessOrEqual:    "<=",
	GreaterThan:    ">",
	GreaterOrEqual: ">=",

	TypeOf:        "get_type",
	IsNull:        "is_null",
	IsNumber:      "is_number",
	IsString:      "is_string",
	IsList:        "is_list",
	IsAssociative: "is_assoc",

	GetLabels:         "get_labels",
	SetLabels:         "set_labels",
	GetComments:       "get_comments",
	SetComments:       "set_comments",
	GetConcurrency:    "get_concurrency",
	SetConcurrency:    "set_concurrency",
	GetNeedCycleCheck: "get_need_cycle_check",
	SetNeedCycleCheck: "set_need_cycle_check",

	Concat:         "concat",
	StringLength:   "length",
	Substr:         "substr",
	StringToNumber: "to_number",
	NumberToString: "to_string",
	Split:          "split",
	Join:           "join",

	Encrypt:          "encrypt",
	Decrypt:          "decrypt",
	CryptoSign:       "crypto_sign",
	CryptoSignVerify: "crypto_sign_verify",

	Print:     "print",
	ReadFile:  "read_file",
	WriteFile: "write_file",

	Merge:         "merge",
	MergeToUnique: "merge_to_unique",

	MergeEntities: "merge_entities",

	GetEntityDetails:        "get_entity_details",
	SetEntityRootPermission: "set_entity_root_permission",
	ContainedEntities:       "contained_entities",
	EntityExists:            "entity_exists",

	CreateEntities:  "create_entities",
	CloneEntities:   "clone_entities",
	MoveEntities:    "move_entities",
	DestroyEntities: "destroy_entities",
	Load:            "load",
	LoadEntity:      "load_entity",
	LoadPersist:     "load_persist",
	Store:           "store",
	StoreEntity:     "store_entity",
	CallEntity:      "call_entity",
	CallContainer:   "call_container",

	RetrieveFromEntity: "retrieve_from_entity",
	AssignToEntity:     "assign_to_entity",
	AccumToEntity:      "accum_to_entity",

	QuerySelect:                     "query_select",
	QueryExists:                     "query_exists",
	QueryCount:                      "query_count",
	QuerySum:                        "query_sum",
	QueryMax:                        "query_max",
	QueryMin:                        "query_min",
	QueryMode:                       "query_mode",
	QueryQuantile:                   "query_quantile",
	QueryGeneralizedMean:            "query_generalized_mean",
	QuerySample:                     "query_sample",
	QueryNearestGeneralizedDistance: "query_nearest_generalized_distance",
	ComputeEntityConvictions:        "compute_entity_convictions",
	ComputeEntityKLDivergences:      "compute_entity_kl_divergences",
}

// aliases are accepted on parse but never emitted on unparse.
var aliases = map[string]Kind{
	"associate": Associative,
	"sequence":  Sequence,
}

var byName map[string]Kind

func init() {
	byName = make(map[string]Kind, Count+len(aliases))
	for k, n := range names {
		if n != "" {
			byName[n] = Kind(k)
		}
	}
	for n, k := range aliases {
		byName[n] = k
	}
}

// Name returns the surface spelling of k.
func Name(k Kind) string {
	if int(k) >= Count {
		return ""
	}
	return names[k]
}

// ByName resolves a surface spelling to its kind.
func ByName(s string) (Kind, bool) {
	k, ok := byName[s]
	return k, ok
}
