package domain

import "time"

// Wire payload structs for the non-ScanResult event types (§6). item and
// attachmentItem carry a ScanResult instead.

type MultiStartPayload struct {
	ScanId ScanId    `json:"scanId"`
	Ts     time.Time `json:"ts"`
}

type StartPayload struct {
	ScanId                     ScanId   `json:"scanId"`
	SpaceKey                   SpaceKey `json:"spaceKey"`
	PagesTotal                 int      `json:"pagesTotal"`
	AnalysisProgressPercentage int      `json:"analysisProgressPercentage"`
}

type PageStartPayload struct {
	ScanId     ScanId   `json:"scanId"`
	SpaceKey   SpaceKey `json:"spaceKey"`
	PageId     PageId   `json:"pageId"`
	PageTitle  string   `json:"pageTitle"`
	PageUrl    string   `json:"pageUrl,omitempty"`
	PageIndex  int      `json:"pageIndex"`
	PagesTotal int       `json:"pagesTotal"`
	Progress   int      `json:"progress"`
}

type PageCompletePayload struct {
	ScanId   ScanId   `json:"scanId"`
	SpaceKey SpaceKey `json:"spaceKey"`
	PageId   PageId   `json:"pageId"`
	Progress int      `json:"progress"`
}

type ScanErrorPayload struct {
	ScanId         ScanId          `json:"scanId"`
	SpaceKey       *SpaceKey       `json:"spaceKey,omitempty"`
	PageId         *PageId         `json:"pageId,omitempty"`
	AttachmentName *AttachmentName `json:"attachmentName,omitempty"`
	Message        string          `json:"message"`
}

type CompletePayload struct {
	ScanId   ScanId   `json:"scanId"`
	SpaceKey SpaceKey `json:"spaceKey"`
	Progress int      `json:"progress"`
}

type MultiCompletePayload struct {
	ScanId ScanId `json:"scanId"`
}

type KeepalivePayload struct {
	Ts time.Time `json:"ts"`
}
