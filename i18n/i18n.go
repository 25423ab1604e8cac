// Package i18n holds the UI translations and locale aware number formatting.
package i18n

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Default is the language used when nothing else matches.
const Default = "en"

var (
	supported = []language.Tag{language.English, language.French}
	matcher   = language.NewMatcher(supported)
)

// Supported reports whether lang has a translation table.
func Supported(lang string) bool {
	_, ok := messages[lang]
	return ok
}

// DetectLanguage picks the best supported language for an Accept-Language header.
func DetectLanguage(acceptLanguage string) string {
	if strings.TrimSpace(acceptLanguage) == "" {
		return Default
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return Default
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return Default
	}
	base, _ := supported[idx].Base()
	return base.String()
}

// T translates code into lang, falling back to the default language then to the code itself.
func T(lang, code string) string {
	if m, ok := messages[lang]; ok {
		if s, ok := m[code]; ok {
			return s
		}
	}
	if s, ok := messages[Default][code]; ok {
		return s
	}
	return code
}

// Money formats an amount in dollars with the digit grouping of lang, e.g. $1,234.50 or 1 234,50 $.
func Money(lang string, amount decimal.Decimal) string {
	f, _ := amount.Round(2).Float64()
	p := message.NewPrinter(tagFor(lang))
	n := p.Sprint(number.Decimal(f, number.Scale(2)))
	if lang == "fr" {
		return n + " $"
	}
	return "$" + n
}

func tagFor(lang string) language.Tag {
	if lang == "fr" {
		return language.French
	}
	return language.English
}

type langKey struct{}

// WithLang stores the language preference in ctx.
func WithLang(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, langKey{}, lang)
}

// LangFromContext returns the language stored in ctx, or Default.
func LangFromContext(ctx context.Context) string {
	if l, ok := ctx.Value(langKey{}).(string); ok && l != "" {
		return l
	}
	return Default
}

var messages = map[string]map[string]string{
	"en": {
		"app.title":              "Invoices",
		"nav.dashboard":          "Dashboard",
		"nav.invoices":           "Invoices",
		"invoice.new":            "New invoice",
		"invoice.edit":           "Edit invoice",
		"invoice.number":         "Number",
		"invoice.client":         "Client",
		"invoice.amount":         "Amount",
		"invoice.created":        "Created",
		"invoice.due":            "Due date",
		"invoice.status":         "Status",
		"invoice.items":          "Items",
		"invoice.description":    "Description",
		"invoice.amount_direct":  "Amount (invoice without items)",
		"invoice.add_item":       "Add item",
		"invoice.preview":        "Preview",
		"invoice.save":           "Save",
		"invoice.delete":         "Delete",
		"invoice.pdf":            "Download PDF",
		"invoice.mark":           "Mark as",
		"invoice.none":           "No invoices yet.",
		"status.Sent":            "Sent",
		"status.Paid":            "Paid",
		"status.Overdue":         "Overdue",
		"analytics.total":        "Total revenue",
		"analytics.monthly":      "This month",
		"analytics.previous":     "Last month",
		"analytics.growth":       "Growth",
		"analytics.trend":        "Revenue trend",
		"analytics.distribution": "Status distribution",
		"analytics.top_clients":  "Top clients",
		"analytics.overdue":      "Overdue invoices",
		"filter.range":           "Period",
		"filter.search":          "Search",
		"filter.all":             "All time",
		"filter.days":            "Last %s days",
		"required":               "Required",
		"too_long":               "Too long",
		"invalid":                "Invalid value",
		"invalid_amount":         "Invalid amount",
		"too_large":              "Amount too large",
		"must_not_be_negative":   "Must not be negative",
		"flash.created":          "Invoice created",
		"flash.updated":          "Invoice updated",
		"flash.deleted":          "Invoice deleted",
		"flash.status":           "Status updated",
		"error.not_found":        "Invoice not found",
		"error.internal":         "Something went wrong",
	},
	"fr": {
		"app.title":              "Factures",
		"nav.dashboard":          "Tableau de bord",
		"nav.invoices":           "Factures",
		"invoice.new":            "Nouvelle facture",
		"invoice.edit":           "Modifier la facture",
		"invoice.number":         "Numéro",
		"invoice.client":         "Client",
		"invoice.amount":         "Montant",
		"invoice.created":        "Créée le",
		"invoice.due":            "Échéance",
		"invoice.status":         "Statut",
		"invoice.items":          "Lignes",
		"invoice.description":    "Description",
		"invoice.amount_direct":  "Montant (facture sans lignes)",
		"invoice.add_item":       "Ajouter une ligne",
		"invoice.preview":        "Aperçu",
		"invoice.save":           "Enregistrer",
		"invoice.delete":         "Supprimer",
		"invoice.pdf":            "Télécharger le PDF",
		"invoice.mark":           "Marquer comme",
		"invoice.none":           "Aucune facture pour le moment.",
		"status.Sent":            "Envoyée",
		"status.Paid":            "Payée",
		"status.Overdue":         "En retard",
		"analytics.total":        "Chiffre d'affaires",
		"analytics.monthly":      "Ce mois-ci",
		"analytics.previous":     "Mois dernier",
		"analytics.growth":       "Croissance",
		"analytics.trend":        "Évolution du chiffre d'affaires",
		"analytics.distribution": "Répartition par statut",
		"analytics.top_clients":  "Meilleurs clients",
		"analytics.overdue":      "Factures en retard",
		"filter.range":           "Période",
		"filter.search":          "Recherche",
		"filter.all":             "Tout",
		"filter.days":            "%s derniers jours",
		"required":               "Requis",
		"too_long":               "Trop long",
		"invalid":                "Valeur invalide",
		"invalid_amount":         "Montant invalide",
		"too_large":              "Montant trop élevé",
		"must_not_be_negative":   "Ne doit pas être négatif",
		"flash.created":          "Facture créée",
		"flash.updated":          "Facture mise à jour",
		"flash.deleted":          "Facture supprimée",
		"flash.status":           "Statut mis à jour",
		"error.not_found":        "Facture introuvable",
		"error.internal":         "Une erreur est survenue",
	},
}
