package backup

// Managed collection keys.
const (
	CollectionScratchpadPages     = "scratchpadPages"
	CollectionTextBlocks          = "textBlocks"
	CollectionBlackboardCanvases  = "blackboardCanvases"
	CollectionCanvasElements      = "canvasElements"
	CollectionDiaryEntries        = "diaryEntries"
	CollectionDrafts              = "drafts"
	CollectionLongDrafts          = "longDrafts"
	CollectionSections            = "sections"
	CollectionAcademicPapers      = "academicPapers"
	CollectionAcademicSections    = "academicSections"
	CollectionBibliographyEntries = "bibliographyEntries"
	CollectionCitations           = "citations"
	CollectionFigures             = "figures"
	CollectionSettings            = "settings"
	CollectionLockedContent       = "lockedContent"
)

// managedCollections lists every collection a snapshot covers, in canonical order.
var managedCollections = []string{
	CollectionScratchpadPages,
	CollectionTextBlocks,
	CollectionBlackboardCanvases,
	CollectionCanvasElements,
	CollectionDiaryEntries,
	CollectionDrafts,
	CollectionLongDrafts,
	CollectionSections,
	CollectionAcademicPapers,
	CollectionAcademicSections,
	CollectionBibliographyEntries,
	CollectionCitations,
	CollectionFigures,
	CollectionSettings,
	CollectionLockedContent,
}

var displayNames = map[string]string{
	CollectionScratchpadPages:     "Scratchpad Pages",
	CollectionTextBlocks:          "Text Blocks",
	CollectionBlackboardCanvases:  "Blackboard Canvases",
	CollectionCanvasElements:      "Canvas Elements",
	CollectionDiaryEntries:        "Diary Entries",
	CollectionDrafts:              "Drafts",
	CollectionLongDrafts:          "Long Drafts",
	CollectionSections:            "Sections",
	CollectionAcademicPapers:      "Academic Papers",
	CollectionAcademicSections:    "Academic Sections",
	CollectionBibliographyEntries: "Bibliography Entries",
	CollectionCitations:           "Citations",
	CollectionFigures:             "Figures",
	CollectionSettings:            "Settings",
	CollectionLockedContent:       "Locked Content",
}

// ManagedTableCount is the number of collections every snapshot describes.
var ManagedTableCount = len(managedCollections)

// ManagedCollections returns a copy of the managed collection keys in canonical order.
func ManagedCollections() []string {
	names := make([]string, len(managedCollections))
	copy(names, managedCollections)
	return names
}

// IsManagedCollection reports whether name is one of the managed collections.
func IsManagedCollection(name string) bool {
	_, ok := displayNames[name]
	return ok
}

// DisplayName returns the friendly name of a collection, or the key itself when unknown.
func DisplayName(collection string) string {
	if name, ok := displayNames[collection]; ok {
		return name
	}
	return collection
}
