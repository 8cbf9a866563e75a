package crud

import "strings"

var templates = map[string]string{
	OpList: `
// List{{Plural}} returns the {{nouns}} matching filter.
func List{{Plural}}(ctx context.Context, r *repo.Repo, filter query.Filter) ([]repo.Record, error) {
	qb, err := r.Filter({{Const}}, filter)
	if err != nil {
		return nil, err
	}
	return r.All(ctx, qb)
}`,

	OpGet: `
// Get{{Singular}} returns the {{noun}} with the given primary key, or nil
// when there is none.
func Get{{Singular}}(ctx context.Context, r *repo.Repo, id interface{}) (repo.Record, error) {
	return r.Get(ctx, {{Const}}, id)
}`,

	OpMustGet: `
// MustGet{{Singular}} returns the {{noun}} with the given primary key. It
// fails with repo.ErrNotFound when there is none.
func MustGet{{Singular}}(ctx context.Context, r *repo.Repo, id interface{}) (repo.Record, error) {
	return r.MustGet(ctx, {{Const}}, id)
}`,

	OpCreate: `
// Create{{Singular}} inserts the {{noun}} built from attrs. An invalid
// changeset is returned as a *changeset.Error.
func Create{{Singular}}(ctx context.Context, r *repo.Repo, attrs map[string]interface{}) (repo.Record, error) {
	cs, err := {{Helper}}(r, nil, attrs)
	if err != nil {
		return nil, err
	}
	return r.Insert(ctx, {{Const}}, cs)
}`,

	OpMustCreate: `
// MustCreate{{Singular}} is Create{{Singular}} failing with
// repo.ErrInvalidChangeset when attrs do not validate.
func MustCreate{{Singular}}(ctx context.Context, r *repo.Repo, attrs map[string]interface{}) (repo.Record, error) {
	cs, err := {{Helper}}(r, nil, attrs)
	if err != nil {
		return nil, err
	}
	return r.MustInsert(ctx, {{Const}}, cs)
}`,

	OpUpdate: `
// Update{{Singular}} applies attrs to record and writes the changes.
func Update{{Singular}}(ctx context.Context, r *repo.Repo, record repo.Record, attrs map[string]interface{}) (repo.Record, error) {
	cs, err := {{Helper}}(r, record, attrs)
	if err != nil {
		return nil, err
	}
	return r.Update(ctx, {{Const}}, cs)
}`,

	OpMustUpdate: `
// MustUpdate{{Singular}} is Update{{Singular}} failing with
// repo.ErrInvalidChangeset when attrs do not validate.
func MustUpdate{{Singular}}(ctx context.Context, r *repo.Repo, record repo.Record, attrs map[string]interface{}) (repo.Record, error) {
	cs, err := {{Helper}}(r, record, attrs)
	if err != nil {
		return nil, err
	}
	return r.MustUpdate(ctx, {{Const}}, cs)
}`,

	OpDelete: `
// Delete{{Singular}} removes record and returns the deleted row.
func Delete{{Singular}}(ctx context.Context, r *repo.Repo, record repo.Record) (repo.Record, error) {
	return r.Delete(ctx, {{Const}}, changeset.New(nil, record))
}`,

	OpMustDelete: `
// MustDelete{{Singular}} removes record and returns the deleted row.
func MustDelete{{Singular}}(ctx context.Context, r *repo.Repo, record repo.Record) (repo.Record, error) {
	return r.MustDelete(ctx, {{Const}}, changeset.New(nil, record))
}`,

	OpChange: `
// Change{{Singular}} returns a changeset of attrs against record without
// touching the database.
func Change{{Singular}}(r *repo.Repo, record repo.Record, attrs map[string]interface{}) (*changeset.Changeset, error) {
	return {{Helper}}(r, record, attrs)
}`,
}

const schemaHelper = `
func {{Helper}}(r *repo.Repo, record, attrs map[string]interface{}) (*changeset.Changeset, error) {
	s, err := r.Schema({{Const}})
	if err != nil {
		return nil, err
	}
	return changeset.CastResource(s, record, attrs, nil).ValidateSchema(), nil
}`

const customHelper = `
func {{Helper}}(_ *repo.Repo, record, attrs map[string]interface{}) (*changeset.Changeset, error) {
	return {{ChangesetFunc}}(record, attrs), nil
}`

func replacer(n names, changesetFunc string) *strings.Replacer {
	return strings.NewReplacer(
		"{{Plural}}", n.plural,
		"{{Singular}}", n.singular,
		"{{nouns}}", n.nouns,
		"{{noun}}", n.noun,
		"{{Const}}", n.constant,
		"{{Helper}}", n.helper,
		"{{ChangesetFunc}}", changesetFunc,
	)
}

func render(op string, n names) string {
	return strings.TrimSpace(replacer(n, "").Replace(templates[op]))
}

func renderHelper(n names, changesetFunc string) string {
	tmpl := schemaHelper
	if changesetFunc != "" {
		tmpl = customHelper
	}
	return strings.TrimSpace(replacer(n, changesetFunc).Replace(tmpl))
}
