package location

// SeedLocations is the hardcoded fallback set used when the remote store
// returns no rows at startup. Coordinates are logical canvas units.
func SeedLocations() []*Location {
	return []*Location{
		{
			ID:          "1",
			Name:        "جرة نابل الشهيرة",
			Lat:         300,
			Lng:         400,
			Description: "رمز المدينة وعاصمة الفخار، تتوسط نابل بجمالها وألوانها.",
			Poet:        "أبو القاسم الشابي",
			Preview:     "إذا الشعب يوماً أراد الحياة...",
			Price:       15,
		},
		{
			ID:          "2",
			Name:        "موقع نيابوليس الأثري",
			Lat:         450,
			Lng:         500,
			Description: "المدينة القديمة الغارقة تحت البحر، شاهدة على العصر الروماني.",
			Poet:        "جعفر ماجد",
			Preview:     "على رملها يكتب البحر سطراً...",
			Price:       20,
		},
		{
			ID:          "3",
			Name:        "سوق البلغة والصناعات",
			Lat:         250,
			Lng:         350,
			Description: "قلب نابل العتيق حيث تفوح رائحة الزهر والياسمين.",
			Poet:        "الصغير أولاد أحمد",
			Preview:     "نحب البلاد كما لا يحب البلاد أحد...",
			Price:       25,
		},
		{
			ID:          "4",
			Name:        "شاطئ نابل الساحر",
			Lat:         500,
			Lng:         650,
			Description: "رمال ذهبية ومياه فيروزية تحاكي جمال الوطن القبلي.",
			Poet:        "منصف المزغني",
			Preview:     "يا بحر نابل يا مرآة أشواقي...",
			Price:       30,
		},
		{
			ID:          "5",
			Name:        "مسجد نابل الكبير",
			Lat:         200,
			Lng:         420,
			Description: "منارة علم ودين تتميز بمعمارها الأندلسي العريق.",
			Poet:        "أحمد اللغماني",
			Preview:     "في صحن دارك يخشع الوجدان...",
			Price:       10,
		},
	}
}
